package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tahfeezapp/tahfeez/core/session"
)

type sessionApi struct {
	store    *session.Store
	validate *validator.Validate
}

func registerSessionAPI(g *echo.Group, authed echo.MiddlewareFunc, deps ServerDeps) {
	api := sessionApi{
		store:    deps.SessionStore,
		validate: deps.Validate,
	}

	sg := g.Group("/sessions", authed)
	sg.GET("", api.query)
	sg.POST("", api.create, teacherMiddleware())
	sg.GET("/:id", api.retrieve)
	sg.GET("/:id/entries", api.queryEntries)
	sg.POST("/:id/entries", api.createEntry)

	g.PUT("/entries/:id", api.updateEntry, authed)
}

// Handlers

func (api *sessionApi) query(ctx echo.Context) error {
	filter := new(session.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []session.Session{})
	}

	if err := api.store.FetchSessions(ctx.Request().Context()); err != nil {
		return err
	}

	sessions := api.store.FilterSessions(*filter)
	if sessions == nil {
		sessions = []session.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *sessionApi) create(ctx echo.Context) error {
	var data session.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	data.Clean()
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	inserted, err := api.store.CreateSession(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, inserted)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	if err := api.store.FetchSession(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.store.CurrentSession())
}

func (api *sessionApi) queryEntries(ctx echo.Context) error {
	if err := api.store.FetchEntries(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}

	entries := api.store.Entries()
	if entries == nil {
		entries = []session.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *sessionApi) createEntry(ctx echo.Context) error {
	var data session.NewEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEntry")
	}
	data.SessionID = ctx.Param("id")
	if data.UserID == "" {
		data.UserID = contextIdentity(ctx).ID
	}
	data.Clean()
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	inserted, err := api.store.CreateEntry(ctx.Request().Context(), contextActor(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, inserted)
}

func (api *sessionApi) updateEntry(ctx echo.Context) error {
	var data session.EntryPatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EntryPatch")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	id := ctx.Param("id")
	if err := api.store.UpdateEntry(ctx.Request().Context(), contextActor(ctx), id, data); err != nil {
		return err
	}

	// the patched mirror row, when present
	for _, entry := range api.store.Entries() {
		if entry.ID == id {
			return ctx.JSON(http.StatusOK, entry)
		}
	}
	return ctx.NoContent(http.StatusNoContent)
}
