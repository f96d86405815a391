/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package retry

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Class is a coarse classification of a failure used to decide if it's worth retrying.
type Class int

// Failure classes.
const (
	ClassOther Class = iota
	ClassNetwork
	ClassRateLimited
	ClassServerError
	ClassClientError
)

// String returns a string representation of the class.
func (c Class) String() string {
	switch c {
	case ClassNetwork:
		return "network"
	case ClassRateLimited:
		return "rate_limited"
	case ClassServerError:
		return "server_error"
	case ClassClientError:
		return "client_error"
	}
	return "other"
}

// ClassifiedError is an error carrying an explicit failure Class.
// Attaching the class at the failure origin is the reliable way to drive retry
// decisions; the message heuristic in ClassOf is only a fallback for errors
// coming from code that doesn't classify them.
type ClassifiedError struct {
	Inner error
	Class Class
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Class, e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *ClassifiedError) Unwrap() error {
	return e.Inner
}

// WithClass wraps err attaching the given failure class to it.
func WithClass(err error, class Class) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Inner: err, Class: class}
}

// ClassOf returns the failure class of err.
// An explicitly attached class (see WithClass) always wins. Timeouts reported
// via net.Error are classified as network failures. Everything else goes through
// a message-substring heuristic which recognizes common network, rate-limit and
// HTTP 5xx wording; the heuristic is intentionally conservative about bare status
// code digits, they are matched only together with surrounding context
// ("status 500"), not anywhere in the text.
func ClassOf(err error) Class {
	if err == nil {
		return ClassOther
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Class
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassNetwork
	}

	return classForMessage(err.Error())
}

// DefaultIsRetryable is the default failure classifier: network, rate-limit and
// server-error (5xx) failures are considered transient, everything else is terminal.
func DefaultIsRetryable(err error) bool {
	switch ClassOf(err) {
	case ClassNetwork, ClassRateLimited, ClassServerError:
		return true
	}
	return false
}

var messagePatterns = []struct {
	substr string
	class  Class
}{
	{"timeout", ClassNetwork},
	{"timed out", ClassNetwork},
	{"connection reset", ClassNetwork},
	{"connection refused", ClassNetwork},
	{"socket hang up", ClassNetwork},
	{"econnreset", ClassNetwork},
	{"econnrefused", ClassNetwork},
	{"etimedout", ClassNetwork},
	{"broken pipe", ClassNetwork},
	{"no such host", ClassNetwork},

	{"rate limit", ClassRateLimited},
	{"rate_limited", ClassRateLimited},
	{"ratelimited", ClassRateLimited},
	{"too many requests", ClassRateLimited},
	{"status 429", ClassRateLimited},
	{"status code 429", ClassRateLimited},
	{"http 429", ClassRateLimited},

	{"internal server error", ClassServerError},
	{"bad gateway", ClassServerError},
	{"service unavailable", ClassServerError},
	{"gateway timeout", ClassServerError},
	{"status 500", ClassServerError},
	{"status 502", ClassServerError},
	{"status 503", ClassServerError},
	{"status 504", ClassServerError},
	{"status code 5", ClassServerError},
	{"http 5", ClassServerError},
}

// matcher is built once, Aho-Corasick makes the multi-substring scan a single pass.
var messageMatcher = func() *ahocorasick.Matcher {
	patterns := make([][]byte, len(messagePatterns))
	for i, p := range messagePatterns {
		patterns[i] = []byte(p.substr)
	}
	return ahocorasick.NewMatcher(patterns)
}()

// classPrecedence orders classes when a message matches several patterns:
// a rate-limit wording is the most specific signal, then network, then 5xx.
var classPrecedence = []Class{ClassRateLimited, ClassNetwork, ClassServerError}

func classForMessage(msg string) Class {
	hits := messageMatcher.Match([]byte(strings.ToLower(msg)))
	if len(hits) == 0 {
		return ClassOther
	}
	matched := make(map[Class]bool, len(hits))
	for _, idx := range hits {
		matched[messagePatterns[idx].class] = true
	}
	for _, class := range classPrecedence {
		if matched[class] {
			return class
		}
	}
	return ClassOther
}
