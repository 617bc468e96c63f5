// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error. Codes are dotted
// "area.operation.reason" strings; the final segment classifies the error.
type Code string

const (
	CodeStoreEntityNotFound        Code = "store.entity.not_found"
	CodeStoreEntityInvalidInput    Code = "store.entity.invalid_input"
	CodeStoreVectorDimension       Code = "store.vector.dimension_mismatch"
	CodeStoreDatabaseFailure       Code = "store.database.failure"
	CodeStoreBackendUnsupported    Code = "store.backend.unsupported"
	CodeStoreOperationCanceled     Code = "store.operation.canceled"
	CodeStoreVectorDecodeFailure   Code = "store.vector.decode.failure"
	CodeStoreVectorEncodeFailure   Code = "store.vector.encode.failure"
	CodeStoreVectorNotNormalized   Code = "store.vector.not_normalized"
	CodeStoreFingerprintMismatch   Code = "store.entity.fingerprint_mismatch"
	CodeStoreMigrationFailure      Code = "store.migration.failure"
	CodeStoreListOptionsInvalid    Code = "store.list.invalid_input"
	CodeStorePayloadEncodeFailure  Code = "store.payload.encode.failure"
	CodeStorePayloadDecodeFailure  Code = "store.payload.decode.failure"
	CodeStoreBackendConfigInvalid  Code = "store.backend.config.invalid_value"
	CodeStoreMatchThresholdInvalid Code = "store.match.invalid_input"
	CodeStoreMatchLimitInvalid     Code = "store.match.limit.invalid_input"
	CodeStoreEntityConflict        Code = "store.entity.conflict"

	CodeEncoderEncodeInvalidInput Code = "encoder.encode.invalid_input"
	CodeEncoderEncodeFailure      Code = "encoder.encode.failure"
	CodeEncoderLoadFailure        Code = "encoder.load.failure"
	CodeEncoderLoadCanceled       Code = "encoder.load.canceled"
	CodeEncoderEncodeCanceled     Code = "encoder.encode.canceled"
	CodeEncoderUpstreamFailure    Code = "encoder.upstream.failure"
	CodeEncoderVariantUnsupported Code = "encoder.variant.unsupported"
	CodeEncoderConfigInvalid      Code = "encoder.config.invalid_value"

	CodeIndexRequestInvalid Code = "index.request.invalid_input"
	CodeIndexReindexFailure Code = "index.reindex.failure"

	CodeSearchQueryInvalid Code = "search.query.invalid_input"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeSecretInvalidInput   Code = "secret.uri.invalid_input"
	CodeSecretNotFound       Code = "secret.keyring.not_found"
	CodeSecretResolveFailure Code = "secret.resolve.failure"
	CodeSecretKeyringFailure Code = "secret.keyring.failure"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"

	CodeCLIInputInvalid  Code = "cli.input.invalid"
	CodeCLISetupFailure  Code = "cli.setup.failure"
	CodeCLIOutputFailure Code = "cli.output.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// FieldValue creates a structured error field.
func FieldValue(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Field is kept as the primary helper for terse callsites.
func Field(key string, value any) Attr {
	return FieldValue(key, value)
}

func FieldEntityID(value string) Attr {
	return Field("entity_id", value)
}

func FieldModel(value string) Attr {
	return Field("model", value)
}

func FieldBackend(value string) Attr {
	return Field("backend", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return &coded{code: code, err: oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)}
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return &coded{code: code, err: oops.Code(code).Wrapf(err, format, args...)}
}

// coded remembers the code a Wrap call attached. oops reports only the
// deepest code of a chain, so outer codes are visible only through InChain.
type coded struct {
	code Code
	err  error
}

func (c *coded) Error() string { return c.err.Error() }
func (c *coded) Unwrap() error { return c.err }

func (c *coded) LogValue() slog.Value {
	if v, ok := c.err.(slog.LogValuer); ok {
		return v.LogValue()
	}
	return slog.StringValue(c.err.Error())
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// InChain reports whether code was attached at any level of err's chain,
// including outer Wrap layers that CodeOf does not report.
func InChain(err error, code Code) bool {
	if err == nil {
		return false
	}
	if CodeOf(err) == code {
		return true
	}
	return walk(err, func(e error) bool {
		c, ok := e.(*coded)
		return ok && c.code == code
	})
}

func walk(err error, match func(error) bool) bool {
	for err != nil {
		if match(err) {
			return true
		}
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, e := range u.Unwrap() {
				if walk(e, match) {
					return true
				}
			}
			return false
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		default:
			return false
		}
	}
	return false
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

// IsDimensionMismatch reports whether a vector of the wrong length reached a store.
func IsDimensionMismatch(err error) bool {
	return reason(CodeOf(err)) == "dimension_mismatch"
}

// IsEncodingFailure reports whether the text encoder could not be loaded or
// could not produce a vector. Invalid input is not an encoding failure.
func IsEncodingFailure(err error) bool {
	code := CodeOf(err)
	return area(code) == "encoder" && reason(code) == "failure"
}

// IsPersistenceFailure reports a backend I/O failure inside a store.
func IsPersistenceFailure(err error) bool {
	code := CodeOf(err)
	return area(code) == "store" && reason(code) == "failure"
}

// IsConflict reports a replace that lost an optimistic concurrency check.
func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsCanceled(err error) bool {
	return reason(CodeOf(err)) == "canceled"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

// HTTPStatus maps err to a response status. An encoder that failed to load
// makes the service unavailable whatever the underlying cause, so that check
// looks through the whole chain before the deepest code is classified.
func HTTPStatus(err error) int {
	switch {
	case IsCanceled(err):
		return http.StatusRequestTimeout
	case InChain(err, CodeEncoderLoadFailure):
		return http.StatusServiceUnavailable
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsConflict(err):
		return http.StatusConflict
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}

func area(code Code) string {
	raw := string(code)
	if idx := strings.Index(raw, "."); idx > 0 {
		return raw[:idx]
	}
	return raw
}
