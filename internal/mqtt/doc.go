// Package mqtt announces fired alarms to the user's speaker devices
// over MQTT. Devices subscribe to their user's announce topic and speak
// the text they receive.
//
// The publisher uses Eclipse Paho v2's [autopaho] package for
// connection management with automatic reconnection. A birth message
// ("online") is published to the availability topic on every
// (re-)connect and a will message flips it to "offline" on unexpected
// disconnects.
package mqtt
