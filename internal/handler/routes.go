package handler

import (
	"net/http"

	"github.com/Suhaibinator/SDispatch/pkg/codec"
	"github.com/Suhaibinator/SDispatch/pkg/common"
	"github.com/Suhaibinator/SDispatch/pkg/router"
	"go.uber.org/multierr"
)

// RegisterRoutes wires all demo views onto the router.
func RegisterRoutes(r *router.Router, health *HealthHandler, echo *EchoHandler, users *UsersHandler) error {
	errs := r.RegisterAll(
		router.RouteConfigBase{
			Name:    "healthz",
			Path:    "/healthz",
			Methods: []string{"GET"},
			View:    common.ViewFunc(health.Healthz),
		},
		router.RouteConfigBase{
			Name:    "echo",
			Path:    "/echo",
			Methods: []string{"GET", "POST"},
			View:    common.ViewOf(echo),
		},
		router.RouteConfigBase{
			Name:    "users.list",
			Path:    "/users",
			Methods: []string{"GET"},
			View:    common.ViewFunc(users.List),
		},
		router.RouteConfigBase{
			Name:    "users.get",
			Path:    "/users/<id:int>",
			Methods: []string{"GET"},
			View:    common.View{Handle: users.Get, OnException: users.OnException},
		},
		router.RouteConfigBase{
			Name:      "users.delete",
			Path:      "/users/<id:int>",
			Methods:   []string{"DELETE"},
			AuthLevel: router.AuthRequired,
			View:      common.View{Handle: users.Delete, OnException: users.OnException},
		},
	)

	errs = multierr.Append(errs, router.RegisterGenericRoute(r, router.RouteConfig[CreateUserRequest, User]{
		Name:          "users.create",
		Path:          "/users",
		Methods:       []string{"POST"},
		Codec:         codec.NewJSONCodec[CreateUserRequest, User](),
		Handler:       users.Create,
		SuccessStatus: http.StatusCreated,
	}))

	return errs
}
