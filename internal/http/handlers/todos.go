// Todo HTTP handlers.
//
// This file exposes the per-user todo endpoints. Every route sits behind
// middleware.Authenticate; the caller only ever sees their own todos and a
// todo owned by someone else answers 404.
//
//   - GET    /todo        (list, filters, weak ETag)
//   - GET    /todo/{id}   (get)
//   - POST   /todo        (create, Idempotency-Key)
//   - PUT    /todo/{id}   (full update, tags replaced)
//   - DELETE /todo/{id}   (delete)
//
// /todos and /todos/{id} are aliases.
package handlers

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-todo-backend/internal/apperr"
	"github.com/tbourn/go-todo-backend/internal/domain"
	"github.com/tbourn/go-todo-backend/internal/http/middleware"
	"github.com/tbourn/go-todo-backend/internal/repo"
	"github.com/tbourn/go-todo-backend/internal/services"
	"github.com/tbourn/go-todo-backend/internal/utils"
)

// MsgIDMismatch is reported on field "id" when a PUT body names another todo.
const MsgIDMismatch = "Id in body must match id in route"

//
// DTOs
//

// TodoRequest is the JSON payload for creating or updating a todo. ID is
// only meaningful on update, where it must equal the path id when present.
type TodoRequest struct {
	ID       *uint      `json:"id,omitempty" example:"7"`
	Name     string     `json:"name" binding:"required,max=200" example:"Buy milk"`
	DueDate  *time.Time `json:"dueDate" binding:"required" example:"2025-06-01T09:00:00Z"`
	Notes    *string    `json:"notes" example:"2 litres"`
	Tags     []string   `json:"tags" binding:"omitempty,dive,max=100" example:"home,errand"`
	Location *string    `json:"location" binding:"omitempty,max=200" example:"Corner shop"`
}

func (r TodoRequest) input() services.TodoInput {
	in := services.TodoInput{
		Name:     r.Name,
		Notes:    r.Notes,
		Location: r.Location,
		Tags:     r.Tags,
	}
	if r.DueDate != nil {
		in.DueDate = r.DueDate.UTC()
	}
	return in
}

// TodoResponse is the public shape of a todo. Tags is always an array.
type TodoResponse struct {
	ID          uint      `json:"id" example:"7"`
	UserID      uint      `json:"userId" example:"1"`
	Name        string    `json:"name" example:"Buy milk"`
	DueDate     time.Time `json:"dueDate" example:"2025-06-01T09:00:00Z"`
	Notes       *string   `json:"notes" example:"2 litres"`
	Tags        []string  `json:"tags" example:"home,errand"`
	Location    *string   `json:"location" example:"Corner shop"`
	CreatedDate time.Time `json:"createdDate" example:"2025-05-20T08:15:00Z"`
}

func toTodoResponse(t *domain.Todo) TodoResponse {
	return TodoResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		Name:        t.Name,
		DueDate:     t.DueDate.UTC(),
		Notes:       t.Notes,
		Tags:        t.TagNames(),
		Location:    t.Location,
		CreatedDate: t.CreatedDate.UTC(),
	}
}

//
// Helpers
//

// listFilter reads the optional list filters from the query string.
func listFilter(c *gin.Context) (repo.TodoFilter, error) {
	var (
		f   repo.TodoFilter
		err error
	)
	if f.DueFrom, err = utils.ParseDateParam(c.Query("dueDateFrom"), false); err != nil {
		return f, err
	}
	if f.DueTo, err = utils.ParseDateParam(c.Query("dueDateTo"), true); err != nil {
		return f, err
	}
	if f.CreatedFrom, err = utils.ParseDateParam(c.Query("createdDateFrom"), false); err != nil {
		return f, err
	}
	if f.CreatedTo, err = utils.ParseDateParam(c.Query("createdDateTo"), true); err != nil {
		return f, err
	}
	f.Tag = strings.TrimSpace(c.Query("tag"))
	return f, nil
}

// listETag derives a weak validator from the caller's todo count, latest
// update and the normalized query string.
func listETag(userID uint, count int64, maxTS *time.Time, c *gin.Context) string {
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixNano()
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(c.Request.URL.Query().Encode()))
	return fmt.Sprintf(`W/"todos:%d:%d:%d:%08x"`, userID, count, ts, h.Sum32())
}

// etagMatches applies weak comparison against an If-None-Match list.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, cand := range strings.Split(header, ",") {
		cand = strings.TrimSpace(cand)
		if cand == "*" || strings.TrimPrefix(cand, "W/") == want {
			return true
		}
	}
	return false
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		fail(c, err)
		return 0, false
	}
	return id, true
}

//
// Handlers
//

// ListTodos godoc
// @ID          listTodos
// @Summary     List todos
// @Description Returns the caller's todos in creation order. Supports a weak ETag via If-None-Match and may return 304.
// @Tags        Todos
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match    header  string  false  "Return 304 if ETag matches"
// @Param       dueDateFrom      query   string  false  "Due on or after (RFC 3339 or YYYY-MM-DD)"
// @Param       dueDateTo        query   string  false  "Due on or before (RFC 3339 or YYYY-MM-DD)"
// @Param       createdDateFrom  query   string  false  "Created on or after (RFC 3339 or YYYY-MM-DD)"
// @Param       createdDateTo    query   string  false  "Created on or before (RFC 3339 or YYYY-MM-DD)"
// @Param       tag              query   string  false  "Only todos carrying this tag"
// @Success     200  {array}   handlers.TodoResponse
// @Header      200  {string}  ETag  "Weak ETag for the current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  middleware.ErrorResponse  "Malformed filter"
// @Failure     401  {object}  middleware.ErrorResponse  "Missing or invalid token"
// @Failure     500  {object}  middleware.ErrorResponse  "Internal error"
// @Router      /todo [get]
func (h *Handlers) ListTodos(c *gin.Context) {
	uid, authed := currentUser(c)
	if !authed {
		return
	}
	f, err := listFilter(c)
	if err != nil {
		fail(c, err)
		return
	}
	ctx := c.Request.Context()

	// ETag pre-check; a stats failure only costs the conditional response.
	if count, maxTS, err := h.todoSvc.Stats(ctx, uid); err == nil {
		etag := listETag(uid, count, maxTS, c)
		c.Header("ETag", etag)
		if etagMatches(c.GetHeader("If-None-Match"), etag) {
			c.Status(http.StatusNotModified)
			return
		}
	} else {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("todo stats unavailable, skipping ETag")
	}

	items, err := h.todoSvc.List(ctx, uid, f)
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]TodoResponse, 0, len(items))
	for i := range items {
		out = append(out, toTodoResponse(&items[i]))
	}
	ok(c, out)
}

// GetTodo godoc
// @ID          getTodo
// @Summary     Get a todo
// @Tags        Todos
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "Todo ID"  minimum(1)
// @Success     200  {object}  handlers.TodoResponse
// @Failure     400  {object}  middleware.ErrorResponse  "Malformed id"
// @Failure     401  {object}  middleware.ErrorResponse  "Missing or invalid token"
// @Failure     404  {object}  middleware.ErrorResponse  "Not found or not owned"
// @Failure     500  {object}  middleware.ErrorResponse  "Internal error"
// @Router      /todo/{id} [get]
func (h *Handlers) GetTodo(c *gin.Context) {
	uid, authed := currentUser(c)
	if !authed {
		return
	}
	id, valid := pathID(c)
	if !valid {
		return
	}
	t, err := h.todoSvc.Get(c.Request.Context(), uid, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toTodoResponse(t))
}

// CreateTodo godoc
// @ID          createTodo
// @Summary     Create a todo
// @Description Creates a todo owned by the caller. With an Idempotency-Key, a retry inside the replay window returns the original todo instead of creating another.
// @Tags        Todos
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false  "Deduplicates retries"  example(5f0c7e2a-create-1)
// @Param       body             body    handlers.TodoRequest  true  "Todo"
// @Success     201  {object}  handlers.TodoResponse
// @Header      201  {string}  Location              "URL of the created todo"
// @Header      201  {string}  Idempotency-Replayed  "true when served from a previous request"
// @Failure     400  {object}  middleware.ErrorResponse  "Validation failed or malformed body"
// @Failure     401  {object}  middleware.ErrorResponse  "Missing or invalid token"
// @Failure     429  {object}  middleware.ErrorResponse  "Rate limited"
// @Failure     500  {object}  middleware.ErrorResponse  "Internal error"
// @Router      /todo [post]
func (h *Handlers) CreateTodo(c *gin.Context) {
	uid, authed := currentUser(c)
	if !authed {
		return
	}
	var req TodoRequest
	if !bindJSON(c, &req) {
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)

	t, replayed, err := h.todoSvc.CreateIdempotent(c.Request.Context(), uid, key, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	if replayed {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
	}
	loc := strings.TrimSuffix(c.Request.URL.Path, "/") + "/" + strconv.FormatUint(uint64(t.ID), 10)
	created(c, loc, toTodoResponse(t))
}

// UpdateTodo godoc
// @ID          updateTodo
// @Summary     Update a todo
// @Description Overwrites every field of the caller's todo; the tag set is replaced. A body id, when present, must equal the path id.
// @Tags        Todos
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      int  true  "Todo ID"  minimum(1)
// @Param       body  body      handlers.TodoRequest  true  "Todo"
// @Success     200   {object}  handlers.TodoResponse
// @Failure     400   {object}  middleware.ErrorResponse  "Validation failed, id mismatch or malformed body"
// @Failure     401   {object}  middleware.ErrorResponse  "Missing or invalid token"
// @Failure     404   {object}  middleware.ErrorResponse  "Not found or not owned"
// @Failure     500   {object}  middleware.ErrorResponse  "Internal error"
// @Router      /todo/{id} [put]
func (h *Handlers) UpdateTodo(c *gin.Context) {
	uid, authed := currentUser(c)
	if !authed {
		return
	}
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req TodoRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.ID != nil && *req.ID != id {
		fail(c, apperr.Validation(map[string][]string{"id": {MsgIDMismatch}}))
		return
	}
	t, err := h.todoSvc.Update(c.Request.Context(), uid, id, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toTodoResponse(t))
}

// DeleteTodo godoc
// @ID          deleteTodo
// @Summary     Delete a todo
// @Tags        Todos
// @Security    BearerAuth
// @Param       id   path    int  true  "Todo ID"  minimum(1)
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  middleware.ErrorResponse  "Malformed id"
// @Failure     401  {object}  middleware.ErrorResponse  "Missing or invalid token"
// @Failure     404  {object}  middleware.ErrorResponse  "Not found or not owned"
// @Failure     500  {object}  middleware.ErrorResponse  "Internal error"
// @Router      /todo/{id} [delete]
func (h *Handlers) DeleteTodo(c *gin.Context) {
	uid, authed := currentUser(c)
	if !authed {
		return
	}
	id, valid := pathID(c)
	if !valid {
		return
	}
	if err := h.todoSvc.Delete(c.Request.Context(), uid, id); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}
