package server

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-tenant-session/identity"
	"github.com/jrsteele09/go-tenant-session/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	repos    identity.Repos
	identity *identity.Service
	validate *validator.Validate
	logger   zerolog.Logger
}

type Option func(*Server)

// WithLogger sets the logger used for request and error logging
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(config config.Config, repos identity.Repos, service *identity.Service, options ...Option) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("[Server New] identity service is required")
	}

	s := &Server{
		mux:      http.NewServeMux(),
		config:   config,
		repos:    repos,
		identity: service,
		validate: newValidator(),
		logger:   log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	s.env = config.GetEnv()

	// Bootstrap: ensure the system tenant and super admin exist
	if err := s.InitialiseSystem(context.Background()); err != nil {
		return nil, fmt.Errorf("[Server New] Failed to initialise the system: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logger.Info().Msgf("[%-19s] %s", colourMethod(parts[0]), parts[1])
		} else {
			s.logger.Info().Msgf("[%-19s] %s", colourMethod(""), parts[0])
		}
	}
}

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
