package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/tasks"
)

// SetTaskStore adds the task list tools to the registry.
func (r *Registry) SetTaskStore(s *tasks.Store) {
	r.tasks = s
	r.registerTaskTools()
}

func (r *Registry) registerTaskTools() {
	if r.tasks == nil {
		return
	}

	r.Register(&Tool{
		Name:        "list_task_lists",
		Description: "List all task lists.",
		Parameters:  object(nil),
		Handler:     r.handleListTaskLists,
	})

	r.Register(&Tool{
		Name:        "create_task_list",
		Description: "Create a new task list.",
		Parameters:  object([]string{"name"}, "name", "The name of the new task list."),
		Handler:     r.handleCreateTaskList,
	})

	r.Register(&Tool{
		Name:        "list_tasks_in_list",
		Description: "List all tasks in a specified task list.",
		Parameters:  object([]string{"task_list_name"}, "task_list_name", "The name of the task list."),
		Handler:     r.handleListTasks,
	})

	r.Register(&Tool{
		Name:        "add_task",
		Description: "Add a task to a specified task list.",
		Parameters: object([]string{"task_name", "task_list_name"},
			"task_name", "The task to add.",
			"task_list_name", "The name of the task list.",
		),
		Handler: r.handleAddTask,
	})

	r.Register(&Tool{
		Name:        "remove_task_list",
		Description: "Remove the entire task list.",
		Parameters:  object([]string{"task_list_name"}, "task_list_name", "The name of the task list to remove."),
		Handler:     r.handleRemoveTaskList,
	})

	r.Register(&Tool{
		Name:        "remove_task",
		Description: "Remove a task from a specified task list.",
		Parameters: object([]string{"task_list_name", "task_name"},
			"task_list_name", "The name of the task list.",
			"task_name", "The task to remove.",
		),
		Handler: r.handleRemoveTask,
	})
}

func (r *Registry) handleListTaskLists(ctx context.Context, _ map[string]any) (string, error) {
	user, err := userID(ctx)
	if err != nil {
		return "", err
	}
	lists, err := r.tasks.Lists(ctx, user)
	if err != nil {
		return "", err
	}
	if len(lists) == 0 {
		return "You have no task lists.", nil
	}
	titles := make([]string, len(lists))
	for i, l := range lists {
		titles[i] = l.Title
	}
	return strings.Join(titles, "\n"), nil
}

func (r *Registry) handleCreateTaskList(ctx context.Context, args map[string]any) (string, error) {
	user, err := userID(ctx)
	if err != nil {
		return "", err
	}
	name, err := requireString(args, "name")
	if err != nil {
		return "", err
	}
	if _, err := r.tasks.CreateList(ctx, user, name); err != nil {
		return "", err
	}
	return fmt.Sprintf("Task list '%s' created.", name), nil
}

func (r *Registry) handleListTasks(ctx context.Context, args map[string]any) (string, error) {
	user, err := userID(ctx)
	if err != nil {
		return "", err
	}
	list, err := requireString(args, "task_list_name")
	if err != nil {
		return "", err
	}
	items, err := r.tasks.Tasks(ctx, user, list)
	if errors.Is(err, tasks.ErrListNotFound) {
		return fmt.Sprintf("No task list found with the name '%s'", list), nil
	}
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return fmt.Sprintf("No tasks found in the '%s' task list", list), nil
	}
	titles := make([]string, len(items))
	for i, t := range items {
		titles[i] = t.Title
	}
	return strings.Join(titles, "\n"), nil
}

func (r *Registry) handleAddTask(ctx context.Context, args map[string]any) (string, error) {
	user, err := userID(ctx)
	if err != nil {
		return "", err
	}
	task, err := requireString(args, "task_name")
	if err != nil {
		return "", err
	}
	list, err := requireString(args, "task_list_name")
	if err != nil {
		return "", err
	}
	_, err = r.tasks.AddTask(ctx, user, list, task)
	if errors.Is(err, tasks.ErrListNotFound) {
		return fmt.Sprintf("No task list found with the name '%s'", list), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Task '%s' added successfully to the '%s' task list", task, list), nil
}

func (r *Registry) handleRemoveTaskList(ctx context.Context, args map[string]any) (string, error) {
	user, err := userID(ctx)
	if err != nil {
		return "", err
	}
	list, err := requireString(args, "task_list_name")
	if err != nil {
		return "", err
	}
	_, err = r.tasks.RemoveList(ctx, user, list)
	if errors.Is(err, tasks.ErrListNotFound) {
		return fmt.Sprintf("No task list found with the name '%s'", list), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("The %s list has been successfully removed.", list), nil
}

func (r *Registry) handleRemoveTask(ctx context.Context, args map[string]any) (string, error) {
	user, err := userID(ctx)
	if err != nil {
		return "", err
	}
	list, err := requireString(args, "task_list_name")
	if err != nil {
		return "", err
	}
	task, err := requireString(args, "task_name")
	if err != nil {
		return "", err
	}
	_, err = r.tasks.RemoveTask(ctx, user, list, task)
	switch {
	case errors.Is(err, tasks.ErrListNotFound):
		return fmt.Sprintf("No task list found with the name '%s'", list), nil
	case errors.Is(err, tasks.ErrTaskNotFound):
		return fmt.Sprintf("Could not find %s under task list %s", task, list), nil
	case err != nil:
		return "", err
	}
	return fmt.Sprintf("%s under task list %s has been successfully removed.", task, list), nil
}
