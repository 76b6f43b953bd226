package composables

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/clientdesk/pkg/constants"
)

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the request-scoped logger, or the standard logger outside of a request.
func UseLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(constants.LoggerKey).(*logrus.Entry); ok && logger != nil {
		return logger
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, constants.SubjectKey, subject)
}

// UseSubject returns the authorization subject (actor role) attached to the request.
func UseSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(constants.SubjectKey).(string)
	return subject, ok && subject != ""
}
