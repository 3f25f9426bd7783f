package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/docs"
)

// SetDocumentStore adds the document tools to the registry.
func (r *Registry) SetDocumentStore(s *docs.Store) {
	r.docs = s
	r.registerDocumentTools()
}

func (r *Registry) registerDocumentTools() {
	if r.docs == nil {
		return
	}

	r.Register(&Tool{
		Name:        "create_document",
		Description: "Create a new document.",
		Parameters:  object([]string{"name"}, "name", "The name of the document."),
		Handler:     r.handleCreateDocument,
	})

	r.Register(&Tool{
		Name:        "insert_text",
		Description: "Insert text into a document.",
		Parameters: object([]string{"text", "document_name"},
			"text", "The text to insert.",
			"document_name", "The name of the document.",
		),
		Handler: r.handleInsertText,
	})
}

func (r *Registry) handleCreateDocument(ctx context.Context, args map[string]any) (string, error) {
	user, err := userID(ctx)
	if err != nil {
		return "", err
	}
	name, err := requireString(args, "name")
	if err != nil {
		return "", err
	}
	err = r.docs.Create(user, name)
	if errors.Is(err, docs.ErrExists) {
		return fmt.Sprintf("Document '%s' already exists.", name), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Document '%s' created.", name), nil
}

func (r *Registry) handleInsertText(ctx context.Context, args map[string]any) (string, error) {
	user, err := userID(ctx)
	if err != nil {
		return "", err
	}
	text, err := requireString(args, "text")
	if err != nil {
		return "", err
	}
	name, err := requireString(args, "document_name")
	if err != nil {
		return "", err
	}
	err = r.docs.InsertText(user, name, text)
	if errors.Is(err, docs.ErrNotFound) {
		return fmt.Sprintf("Document '%s' not found.", name), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Text inserted into '%s'.", name), nil
}
