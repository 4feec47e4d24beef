package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/schema"
	"golang.org/x/time/rate"

	"github.com/willemschots/rentals/internal"
	"github.com/willemschots/rentals/internal/auth"
	"github.com/willemschots/rentals/internal/email"
	"github.com/willemschots/rentals/internal/errorz"
	"github.com/willemschots/rentals/internal/offer"
)

// Validator validates input structs.
type Validator interface {
	Validate(s any) error
}

// ServerDeps are the dependencies for the server.
type ServerDeps struct {
	Logger       *slog.Logger
	AuthService  *auth.Service
	TokenService *auth.TokenService
	OfferService *offer.Service
	Validator    Validator
}

// ServerConfig is the configuration for the server.
type ServerConfig struct {
	// CORSOrigins are the origins allowed to make cross origin requests.
	// CORS is disabled when empty.
	CORSOrigins []string
	// LoginRate and LoginBurst limit token requests per client.
	LoginRate  rate.Limit
	LoginBurst int
}

type Server struct {
	deps    *ServerDeps
	router  *chi.Mux
	decoder *schema.Decoder
}

var errMethodNotAllowed = errors.New("method not allowed")

func NewServer(deps *ServerDeps, cfg ServerConfig) *Server {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	s := &Server{
		deps:    deps,
		router:  chi.NewRouter(),
		decoder: decoder,
	}

	r := s.router

	// Global middlewares. Panics are recovered before the request is logged.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.handleError(w, r, errorz.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.handleError(w, r, errMethodNotAllowed)
	})

	// Most endpoints below are created using the map functions.
	// These functions return handlers that automatically map between HTTP requests, target functions and HTTP responses.
	// The request mapping and response writing is customizable.

	r.Method(http.MethodGet, "/health", mapResponse(s, func(ctx context.Context) (healthResponse, error) {
		return healthResponse{
			Status:   "ok",
			Revision: internal.BuildRevision,
		}, nil
	}))

	// Register user endpoint.
	{
		type registration struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Name     string `json:"name"`
		}

		h := mapBoth(s, func(ctx context.Context, in registration) (userResponse, error) {
			u, err := deps.AuthService.CreateUser(ctx, in.Email, in.Password, auth.UserExtra{Name: in.Name})
			if err != nil {
				return userResponse{}, err
			}
			return newUserResponse(u), nil
		})

		r.Method(http.MethodPost, "/users", h.withStatus(http.StatusCreated))
	}

	// Token endpoint, rate limited per client to slow down password guessing.
	{
		type credentials struct {
			Email    string `json:"email" validate:"required"`
			Password string `json:"password" validate:"required"`
		}

		h := mapBoth(s, func(ctx context.Context, in credentials) (tokenResponse, error) {
			err := deps.Validator.Validate(in)
			if err != nil {
				return tokenResponse{}, err
			}

			creds, err := parseCredentials(in.Email, in.Password)
			if err != nil {
				return tokenResponse{}, err
			}

			u, err := deps.AuthService.Authenticate(ctx, creds)
			if err != nil {
				return tokenResponse{}, err
			}

			token, err := deps.TokenService.Issue(u)
			if err != nil {
				return tokenResponse{}, err
			}

			return tokenResponse{
				Token:     token,
				ExpiresIn: int(deps.TokenService.Expiry().Seconds()),
			}, nil
		})

		limiter := newKeyedLimiter(cfg.LoginRate, cfg.LoginBurst)
		r.With(s.rateLimited(limiter)).Method(http.MethodPost, "/tokens", h.withStatus(http.StatusCreated))
	}

	// Everything below requires an authenticated user.
	r.Group(func(r chi.Router) {
		r.Use(s.authenticated)

		r.Method(http.MethodGet, "/users/me", mapResponse(s, func(ctx context.Context) (userResponse, error) {
			u, ok := UserFromContext(ctx)
			if !ok {
				return userResponse{}, errorz.ErrUnauthenticated
			}
			return newUserResponse(u), nil
		}))

		s.tagRoutes(r)
		s.offerRoutes(r)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) tagRoutes(r chi.Router) {
	svc := s.deps.OfferService

	r.Method(http.MethodGet, "/tags", mapResponse(s, func(ctx context.Context) ([]tagResponse, error) {
		tags, err := svc.ListTags(ctx, callerID(ctx))
		if err != nil {
			return nil, err
		}
		return newTagResponses(tags), nil
	}))

	h := mapBoth(s, func(ctx context.Context, in offer.TagInput) (tagResponse, error) {
		t, err := svc.CreateTag(ctx, callerID(ctx), in)
		if err != nil {
			return tagResponse{}, err
		}
		return newTagResponse(t), nil
	})
	r.Method(http.MethodPost, "/tags", h.withStatus(http.StatusCreated))
}

// offerQuery holds the filters of the offer list.
type offerQuery struct {
	// Tags is a comma separated list of tag ids.
	Tags        string `schema:"tags"`
	Highlighted *bool  `schema:"highlighted"`
}

func (s *Server) offerRoutes(r chi.Router) {
	svc := s.deps.OfferService

	{
		h := mapBoth(s, func(ctx context.Context, f offer.OfferFilter) ([]offerResponse, error) {
			offers, err := svc.ListOffers(ctx, callerID(ctx), f)
			if err != nil {
				return nil, err
			}
			return newOfferResponses(offers), nil
		})
		h.request(s.offerFilterRequest)

		r.Method(http.MethodGet, "/offers", h)
	}
	{
		h := mapBoth(s, func(ctx context.Context, in offer.OfferInput) (offerResponse, error) {
			o, err := svc.CreateOffer(ctx, callerID(ctx), in)
			if err != nil {
				return offerResponse{}, err
			}
			return newOfferResponse(o), nil
		})

		r.Method(http.MethodPost, "/offers", h.withStatus(http.StatusCreated))
	}
	{
		h := mapBoth(s, func(ctx context.Context, in idInput[struct{}]) (offerResponse, error) {
			o, err := svc.GetOffer(ctx, callerID(ctx), in.id)
			if err != nil {
				return offerResponse{}, err
			}
			return newOfferResponse(o), nil
		})
		h.request(idRequest)

		r.Method(http.MethodGet, "/offers/{id}", h)
	}
	{
		h := mapBoth(s, func(ctx context.Context, in idInput[offer.OfferInput]) (offerResponse, error) {
			o, err := svc.UpdateOffer(ctx, callerID(ctx), in.id, in.body)
			if err != nil {
				return offerResponse{}, err
			}
			return newOfferResponse(o), nil
		})
		h.request(idBodyRequest[offer.OfferInput])

		r.Method(http.MethodPut, "/offers/{id}", h)
	}
	{
		h := mapBoth(s, func(ctx context.Context, in idInput[offer.OfferPatch]) (offerResponse, error) {
			o, err := svc.PatchOffer(ctx, callerID(ctx), in.id, in.body)
			if err != nil {
				return offerResponse{}, err
			}
			return newOfferResponse(o), nil
		})
		h.request(idBodyRequest[offer.OfferPatch])

		r.Method(http.MethodPatch, "/offers/{id}", h)
	}
	{
		h := mapRequest(s, func(ctx context.Context, in idInput[struct{}]) error {
			return svc.DeleteOffer(ctx, callerID(ctx), in.id)
		})
		h.request(idRequest)

		r.Method(http.MethodDelete, "/offers/{id}", h)
	}
}

func (s *Server) offerFilterRequest(r *http.Request) (offer.OfferFilter, error) {
	var q offerQuery
	err := s.decodeQuery(r, &q)
	if err != nil {
		return offer.OfferFilter{}, err
	}

	f := offer.OfferFilter{
		IsHighlighted: q.Highlighted,
	}

	if q.Tags == "" {
		return f, nil
	}

	for _, raw := range strings.Split(q.Tags, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return offer.OfferFilter{}, errorz.InvalidInput{errorz.Keyed{
				Key: "tags",
				Err: errors.New("must be a comma separated list of tag ids"),
			}}
		}
		f.TagIDs = append(f.TagIDs, id)
	}

	return f, nil
}

// idInput is the input of requests for a single resource.
type idInput[T any] struct {
	id   int
	body T
}

func idRequest(r *http.Request) (idInput[struct{}], error) {
	id, err := idParam(r, "id")
	if err != nil {
		return idInput[struct{}]{}, err
	}

	return idInput[struct{}]{id: id}, nil
}

func idBodyRequest[T any](r *http.Request) (idInput[T], error) {
	id, err := idParam(r, "id")
	if err != nil {
		return idInput[T]{}, err
	}

	var body T
	err = decodeJSON(r, &body)
	if err != nil {
		return idInput[T]{}, err
	}

	return idInput[T]{id: id, body: body}, nil
}

// parseCredentials converts the raw credentials. Malformed credentials
// can't belong to any user, they are treated like wrong ones.
func parseCredentials(rawEmail, rawPassword string) (auth.Credentials, error) {
	addr, err := email.ParseAddress(rawEmail)
	if err != nil {
		return auth.Credentials{}, errors.Join(auth.ErrInvalidCredentials, err)
	}

	pwd, err := auth.ParsePassword(rawPassword)
	if err != nil {
		return auth.Credentials{}, errors.Join(auth.ErrInvalidCredentials, err)
	}

	return auth.Credentials{
		Email:    addr,
		Password: pwd,
	}, nil
}

type healthResponse struct {
	Status   string `json:"status"`
	Revision string `json:"revision"`
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var invalidInput errorz.InvalidInput
	switch {
	case errors.As(err, &invalidInput):
		s.writeError(w, r, http.StatusBadRequest, errorResponse{
			Message: "invalid input",
			Fields:  fieldErrors(invalidInput),
		})
	case errors.Is(err, ErrBadRequest):
		s.writeError(w, r, http.StatusBadRequest, errorResponse{Message: err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.writeError(w, r, http.StatusBadRequest, errorResponse{Message: "unable to log in with provided credentials"})
	case errors.Is(err, errorz.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", `Bearer realm="rentals"`)
		s.writeError(w, r, http.StatusUnauthorized, errorResponse{Message: "authentication required"})
	case errors.Is(err, errorz.ErrNotFound):
		s.writeError(w, r, http.StatusNotFound, errorResponse{Message: "not found"})
	case errors.Is(err, errMethodNotAllowed):
		s.writeError(w, r, http.StatusMethodNotAllowed, errorResponse{Message: "method not allowed"})
	case errors.Is(err, errorz.ErrTooManyRequests):
		s.writeError(w, r, http.StatusTooManyRequests, errorResponse{Message: "too many requests"})
	default:
		s.deps.Logger.Error("internal server error",
			"url", r.URL.String(),
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		s.writeError(w, r, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, body errorResponse) {
	err := writeJSON(w, status, body)
	if err != nil {
		s.deps.Logger.Error("failed to write error response",
			"url", r.URL.String(),
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
}

// fieldErrors groups the reasons per field. Errors without a key
// are listed under "non_field_errors".
func fieldErrors(invalid errorz.InvalidInput) map[string][]string {
	fields := make(map[string][]string, len(invalid))
	for _, err := range invalid {
		var keyed errorz.Keyed
		if errors.As(err, &keyed) {
			fields[keyed.Key] = append(fields[keyed.Key], keyed.Err.Error())
			continue
		}

		fields["non_field_errors"] = append(fields["non_field_errors"], err.Error())
	}
	return fields
}
