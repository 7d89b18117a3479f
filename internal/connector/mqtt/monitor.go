//file: internal/connector/mqtt/monitor.go
package mqtt

import (
	"strings"
)

// Mosquitto log_dest topic payloads:
//
//	subscribe:   "<timestamp>: <client-id> <qos> <topic>"
//	unsubscribe: "<timestamp>: <client-id> <topic>"
//
// The client id cannot contain spaces in either form, and the topic is
// always the final field.

// parseSubscribeLog extracts the subscribed topic from a broker
// subscribe-log payload.
func parseSubscribeLog(payload string) (string, bool) {
	fields := logFields(payload)
	if len(fields) != 3 {
		return "", false
	}
	return fields[2], true
}

// parseUnsubscribeLog extracts the topic from a broker unsubscribe-log
// payload.
func parseUnsubscribeLog(payload string) (string, bool) {
	fields := logFields(payload)
	if len(fields) != 2 {
		return "", false
	}
	return fields[1], true
}

// logFields strips the leading timestamp and splits the remainder on
// single spaces.
func logFields(payload string) []string {
	_, rest, found := strings.Cut(payload, ": ")
	if !found || rest == "" {
		return nil
	}
	return strings.Split(rest, " ")
}
