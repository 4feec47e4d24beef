package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/schema"

	"github.com/willemschots/rentals/internal/errorz"
)

// maxBodyBytes limits the size of request bodies, inputs of this API are small.
const maxBodyBytes = 1 << 20

// ErrBadRequest indicates a request that can't be decoded at all.
var ErrBadRequest = errors.New("bad request")

// decodeJSON decodes the JSON request body into tgt. Fields of the wrong
// type are reported as errorz.InvalidInput, keyed by their JSON name.
func decodeJSON(r *http.Request, tgt any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))

	err := dec.Decode(tgt)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return errorz.InvalidInput{errorz.Keyed{
			Key: typeErr.Field,
			Err: fmt.Errorf("must be a %s, got a %s", jsonTypeName(typeErr), typeErr.Value),
		}}
	}

	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: empty request body", ErrBadRequest)
	}

	return fmt.Errorf("%w: malformed request body: %w", ErrBadRequest, err)
}

func jsonTypeName(typeErr *json.UnmarshalTypeError) string {
	if typeErr.Type == nil {
		return "value"
	}

	switch typeErr.Type.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "list"
	case reflect.Bool:
		return "boolean"
	case reflect.Struct, reflect.Map:
		return "object"
	default:
		return typeErr.Type.Kind().String()
	}
}

// decodeQuery decodes the query string of the request into tgt using gorilla/schema.
func (s *Server) decodeQuery(r *http.Request, tgt any) error {
	err := s.decoder.Decode(tgt, r.URL.Query())
	return decodeError(err)
}

func decodeError(err error) error {
	if err == nil {
		return nil
	}

	var multiErr schema.MultiError
	if errors.As(err, &multiErr) {
		var invalidInput errorz.InvalidInput
		for key, e := range multiErr {
			invalidInput = append(invalidInput, errorz.Keyed{
				Key: key,
				Err: unwrapConversion(e),
			})
		}

		return invalidInput
	}

	return err
}

// unwrapConversion drops the key from conversion errors, it's already
// part of the keyed error.
func unwrapConversion(err error) error {
	var convErr schema.ConversionError
	if !errors.As(err, &convErr) {
		return err
	}

	if convErr.Err != nil {
		return convErr.Err
	}

	return errors.New("is invalid")
}

// idParam reads the path parameter name as a positive id. Ids that
// can't exist are reported as not found.
func idParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)

	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s %q", errorz.ErrNotFound, name, raw)
	}

	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
