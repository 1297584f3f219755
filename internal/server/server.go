// Package server assembles the HTTP API from the configuration and a store.
package server

import (
	"fmt"
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/nrednav/cuid2"
	"github.com/prometheus/client_golang/prometheus"

	"uk.co.dudmesh.todo/internal/boot"
	"uk.co.dudmesh.todo/internal/handlers"
	"uk.co.dudmesh.todo/internal/model"
	"uk.co.dudmesh.todo/internal/service/item"
	"uk.co.dudmesh.todo/internal/service/user"
	"uk.co.dudmesh.todo/internal/store"
	"uk.co.dudmesh.todo/pkg/crypt"
	"uk.co.dudmesh.todo/pkg/token"
)

type Services struct {
	Users handlers.UserService
	Items handlers.ItemService
}

func NewServices(config *boot.Config, s store.Store) (*Services, error) {
	issuer, err := token.New([]byte(config.Auth.Secret), config.Auth.Issuer,
		token.WithLifetime(config.Auth.TokenTTL),
		token.WithIDGenerator(model.CreateID),
	)
	if err != nil {
		return nil, fmt.Errorf("creating token issuer: %w", err)
	}

	return &Services{
		Users: user.New(s, crypt.NewHasher(config.Auth.PasswordCost), issuer),
		Items: item.New(s),
	}, nil
}

// New builds the API server. Request metrics are registered with registerer.
func New(config *boot.Config, services *Services, registerer prometheus.Registerer) *echo.Echo {
	server := echo.New()
	server.HideBanner = true
	server.Validator = handlers.NewValidator()
	server.HTTPErrorHandler = handlers.ErrorHandler(config.Server.ErrorStatusCodes)
	server.Logger.SetLevel(log.INFO)

	server.Use(middleware.BodyLimit("1M"))
	server.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return cuid2.Generate()
		},
	}))
	server.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "todo",
		Registerer: registerer,
	}))
	server.Use(middleware.Recover())

	headers := []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization}
	server.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: strings.Split(config.Server.Origins, ","),
		AllowHeaders: headers,
	}))
	server.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
		Timeout: config.Server.RequestTimeout,
		ErrorHandler: func(err error, c echo.Context) error {
			return err
		},
	}))

	routes(server, services)
	return server
}

func routes(server *echo.Echo, services *Services) {
	server.GET("/health", handlers.Health())

	server.POST("/register", handlers.Register(services.Users))
	server.POST("/login", handlers.Login(services.Users))
	server.POST("/passive", handlers.Passive(services.Users))
	server.POST("/logout", handlers.Logout(services.Users))

	server.GET("/user/all", handlers.ListUsers(services.Users))
	server.GET("/user/:id", handlers.GetUser(services.Users))
	server.POST("/user", handlers.Register(services.Users))
	server.PUT("/user/:id", handlers.UpdateUser(services.Users))
	server.DELETE("/user/:id", handlers.DeleteUser(services.Users))
	server.DELETE("/user", handlers.DeleteUser(services.Users))

	server.GET("/item/all", handlers.ListItems(services.Items))
	server.GET("/item/:id", handlers.GetItem(services.Items))
	server.POST("/item", handlers.CreateItem(services.Items))
	server.PUT("/item/:id", handlers.UpdateItem(services.Items))
	server.DELETE("/item/:id", handlers.DeleteItem(services.Items))
	server.DELETE("/item", handlers.DeleteItem(services.Items))
}

// NewMetrics serves the prometheus registry on its own listener.
func NewMetrics() *echo.Echo {
	metrics := echo.New()
	metrics.HideBanner = true
	metrics.GET("/metrics", echoprometheus.NewHandler())
	return metrics
}
