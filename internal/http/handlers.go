package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"paymanager/internal/core"
	"paymanager/internal/log"
	"paymanager/internal/payments"
	"paymanager/internal/services"
)

var errInvalidOrder = errors.New("invalid order: must be asc or desc")

type listResponse struct {
	Payments []core.Payment `json:"payments"`
	Count    int            `json:"count"`
	Skipped  []string       `json:"skipped,omitempty"`
}

type chartResponse struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks that the store answers
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.svc.Ready(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		NewJSONResponse().
			Status(http.StatusServiceUnavailable).
			JSON(map[string]string{"status": "not_ready", "store": err.Error()}).
			Write(w)
		return
	}
	NewJSONResponse().JSON(map[string]string{"status": "ready", "store": "ok"}).Write(w)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOptions(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	snap, err := s.svc.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := listResponse{Payments: snap.Payments, Count: len(snap.Payments)}
	for _, skipped := range snap.Skipped {
		resp.Skipped = append(resp.Skipped, skipped.Key)
	}
	NewJSONResponse().JSON(resp).Write(w)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	in := core.PaymentInput{
		Name:    parser.Get("name"),
		Amount:  parser.Amount("amount"),
		DueDate: parser.First("dueDate", "dueAt"),
		DueTime: parser.Get("dueTime"),
	}
	p, err := s.svc.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/payments/"+url.PathEscape(p.Name)).
		JSON(p).
		Write(w)
}

// paymentName returns the unescaped {name} route variable. The router
// matches on the encoded path so names may contain slashes.
func paymentName(r *http.Request) (string, error) {
	return url.PathUnescape(mux.Vars(r)["name"])
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	name, err := paymentName(r)
	if err != nil {
		BadRequestError("malformed payment name").Write(w)
		return
	}
	p, err := s.svc.Get(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(p).Write(w)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	name, err := paymentName(r)
	if err != nil {
		BadRequestError("malformed payment name").Write(w)
		return
	}
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	patch, err := core.ParsePatchInput(core.PatchInput{
		Amount:  parser.Amount("amount"),
		DueDate: parser.First("dueDate", "dueAt"),
		DueTime: parser.Get("dueTime"),
		Status:  parser.Get("status"),
	}, s.svc.Location())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.svc.Update(r.Context(), name, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(p).Write(w)
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	name, err := paymentName(r)
	if err != nil {
		BadRequestError("malformed payment name").Write(w)
		return
	}
	p, err := s.svc.MarkPaid(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(p).Write(w)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name, err := paymentName(r)
	if err != nil {
		BadRequestError("malformed payment name").Write(w)
		return
	}
	if err := s.svc.Delete(r.Context(), name); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteAll(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Dashboard(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(summary).Write(w)
}

// handleChart returns the status histogram shaped for a bar chart.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Dashboard(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := chartResponse{
		Labels: make([]string, 0, len(summary.Histogram)),
		Data:   make([]int, 0, len(summary.Histogram)),
	}
	for _, b := range summary.Histogram {
		resp.Labels = append(resp.Labels, string(b.Status))
		resp.Data = append(resp.Data, b.Count)
	}
	NewJSONResponse().JSON(resp).Write(w)
}

// writeError maps service errors to status codes. Persistence details are
// logged and never returned to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *core.ValidationError
		dup  *payments.DuplicateKeyError
	)
	switch {
	case errors.As(err, &verr):
		ValidationFailed(string(verr.Kind), verr.Field, verr.Error()).Write(w)
	case errors.As(err, &dup):
		ConflictError(dup.Error()).Write(w)
	case errors.Is(err, payments.ErrNotFound):
		NotFoundError(err.Error()).Write(w)
	case errors.Is(err, context.DeadlineExceeded):
		ErrorResponse(http.StatusServiceUnavailable, "request timed out").Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeInternal,
			log.FieldPath, r.URL.Path)
		InternalServerError("internal error, please retry later").Write(w)
	}
}

// PaymentService is the part of services.PaymentService the API uses.
type PaymentService interface {
	Ready(ctx context.Context) error
	Location() *time.Location
	Create(ctx context.Context, in core.PaymentInput) (core.Payment, error)
	Get(ctx context.Context, name string) (core.Payment, error)
	List(ctx context.Context, opts services.ListOptions) (payments.Snapshot, error)
	Update(ctx context.Context, name string, patch core.PaymentPatch) (core.Payment, error)
	MarkPaid(ctx context.Context, name string) (core.Payment, error)
	Delete(ctx context.Context, name string) error
	DeleteAll(ctx context.Context) error
	Dashboard(ctx context.Context) (core.Summary, error)
}

var _ PaymentService = (*services.PaymentService)(nil)
