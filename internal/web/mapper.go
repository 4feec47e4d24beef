package web

import (
	"context"
	"net/http"
)

// mapper is a generic HTTP handler that maps requests to target
// function calls and writes the output to the response.
type mapper[IN, OUT any] struct {
	s      *Server
	req    func(*http.Request) (IN, error)
	target func(context.Context, IN) (OUT, error)
	res    func(result[IN, OUT]) error
	status int
}

// result is the result of a succesful request.
// it contains all relevant data because we can't know
// in advance what we will need to construct a response.
type result[IN, OUT any] struct {
	s      *Server
	r      *http.Request
	w      http.ResponseWriter
	status int
	in     IN
	out    OUT
}

// mapBoth creates a HTTP Handler that:
// 1. Maps the JSON request body to a value of input type IN.
// 2. Calls the target func with that value.
// 3. Writes the output of type OUT as JSON to the response with status 200.
//
// Errors are written using the server error handler.
func mapBoth[IN, OUT any](s *Server, targetFunc func(context.Context, IN) (OUT, error)) *mapper[IN, OUT] {
	return &mapper[IN, OUT]{
		s: s,
		req: func(r *http.Request) (IN, error) {
			return defaultRequest[IN](r)
		},
		target: targetFunc,
		res: func(r result[IN, OUT]) error {
			return defaultResponse(r)
		},
		status: http.StatusOK,
	}
}

// mapRequest creates a HTTP Handler that:
// 1. Maps the JSON request body to a value of type IN.
// 2. Calls the target func with that value.
// 3. Writes a status 204 response without a body if target func was successful.
//
// Errors are written using the server error handler.
func mapRequest[IN any](s *Server, targetFunc func(context.Context, IN) error) *mapper[IN, struct{}] {
	return &mapper[IN, struct{}]{
		s: s,
		req: func(r *http.Request) (IN, error) {
			return defaultRequest[IN](r)
		},
		target: func(ctx context.Context, in IN) (struct{}, error) {
			err := targetFunc(ctx, in)
			if err != nil {
				return struct{}{}, err
			}

			return struct{}{}, nil
		},
		res: func(r result[IN, struct{}]) error {
			r.w.WriteHeader(r.status)
			return nil
		},
		status: http.StatusNoContent,
	}
}

// mapResponse creates a HTTP Handler that:
// 1. Calls the target func.
// 2. Maps the returned value of type OUT to the response with a status 200.
//
// Errors are written using the server error handler.
func mapResponse[OUT any](s *Server, targetFunc func(context.Context) (OUT, error)) *mapper[struct{}, OUT] {
	return &mapper[struct{}, OUT]{
		s: s,
		req: func(r *http.Request) (struct{}, error) {
			return struct{}{}, nil
		},
		target: func(ctx context.Context, _ struct{}) (OUT, error) {
			out, err := targetFunc(ctx)
			if err != nil {
				return out, err
			}

			return out, nil
		},
		res: func(r result[struct{}, OUT]) error {
			return defaultResponse(r)
		},
		status: http.StatusOK,
	}
}

// request overwrites the function that maps the request to the input type.
func (e *mapper[IN, OUT]) request(fn func(r *http.Request) (IN, error)) *mapper[IN, OUT] {
	e.req = fn
	return e
}

// withStatus overwrites the status code of succesful responses.
func (e *mapper[IN, OUT]) withStatus(status int) *mapper[IN, OUT] {
	e.status = status
	return e
}

func (e *mapper[IN, OUT]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	in, err := e.req(r)
	if err != nil {
		e.s.handleError(w, r, err)
		return
	}

	out, err := e.target(r.Context(), in)
	if err != nil {
		e.s.handleError(w, r, err)
		return
	}

	result := result[IN, OUT]{
		s:      e.s,
		r:      r,
		w:      w,
		status: e.status,
		in:     in,
		out:    out,
	}

	err = e.res(result)
	if err != nil {
		e.s.handleError(w, r, err)
		return
	}
}

// defaultRequest is the default way to map a request to a struct.
func defaultRequest[IN any](r *http.Request) (IN, error) {
	var in IN
	err := decodeJSON(r, &in)
	return in, err
}

// defaultResponse is the default way to write a response to the client.
func defaultResponse[IN, OUT any](r result[IN, OUT]) error {
	return writeJSON(r.w, r.status, r.out)
}
