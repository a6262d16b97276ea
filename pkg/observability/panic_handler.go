package observability

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// RecoverPanic recovers from a panic and logs it with its stack.
// It must be called directly in a defer statement.
//
//	func riskyOperation() {
//	    defer observability.RecoverPanic(logger, "risky operation")
//	    // ...
//	}
//
// The panic is not re-raised.
func RecoverPanic(logger logrus.FieldLogger, context string) {
	if r := recover(); r != nil {
		logPanic(logger, context, r)
	}
}

// RecoverPanicWithCallback recovers from a panic, logs it, and runs callback.
// The callback only runs when a panic occurred.
//
//	defer observability.RecoverPanicWithCallback(logger, "handler", func() {
//	    http.Error(w, "internal error", http.StatusInternalServerError)
//	})
func RecoverPanicWithCallback(logger logrus.FieldLogger, context string, callback func()) {
	if r := recover(); r != nil {
		logPanic(logger, context, r)
		if callback != nil {
			callback()
		}
	}
}

func logPanic(logger logrus.FieldLogger, context string, r interface{}) {
	logger.WithFields(logrus.Fields{
		"panic":   fmt.Sprint(r),
		"stack":   string(debug.Stack()),
		"context": context,
	}).Error("PANIC recovered")
}
