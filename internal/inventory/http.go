package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"MiniPOS/internal/apperr"
	"MiniPOS/internal/catalog"
	"MiniPOS/internal/ledger"
	"MiniPOS/internal/orderai"
	"MiniPOS/internal/report"
	"MiniPOS/pkg/kit"
)

const dateLayout = "2006-01-02"

type Server struct {
	Coord *Coordinator
	Log   *zap.Logger

	// Now and Location decide what "today" is for summaries, date filters
	// and export names.
	Now      func() time.Time
	Location *time.Location
}

// mutation is the envelope of every write. Warning is set when the change was
// applied but could not be saved.
type mutation struct {
	Data    any    `json:"data"`
	Warning string `json:"warning,omitempty"`
}

type productReq struct {
	Name         string      `json:"name"`
	CostPrice    json.Number `json:"cost_price"`
	SellingPrice json.Number `json:"selling_price"`
	Stock        json.Number `json:"stock"`
}

func (p productReq) input() (catalog.Input, error) {
	return catalog.ParseInput(p.Name, p.CostPrice.String(), p.SellingPrice.String(), p.Stock.String())
}

type stockReq struct {
	Delta int `json:"delta"`
}

type commitReq struct {
	Lines []CartLine `json:"lines"`
}

type clearReq struct {
	Confirm bool `json:"confirm"`
}

type importReq struct {
	Text   string     `json:"text"`
	Cart   []CartLine `json:"cart"`
	Commit bool       `json:"commit"`
}

type importResp struct {
	ImportResult
	Sale *SaleView `json:"sale,omitempty"`
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.Coord.Products())
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.Coord.Product(chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) addProduct(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if !s.decode(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	p, err := s.Coord.AddProduct(r.Context(), in)
	s.writeMutation(w, r, http.StatusCreated, p, err)
}

func (s *Server) editProduct(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if !s.decode(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	p, err := s.Coord.EditProduct(r.Context(), chi.URLParam(r, "id"), in)
	s.writeMutation(w, r, http.StatusOK, p, err)
}

func (s *Server) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req stockReq
	if !s.decode(w, r, &req) {
		return
	}

	p, err := s.Coord.AdjustStock(r.Context(), chi.URLParam(r, "id"), req.Delta)
	s.writeMutation(w, r, http.StatusOK, p, err)
}

func (s *Server) removeProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.Coord.RemoveProduct(r.Context(), id)
	s.writeMutation(w, r, http.StatusOK, map[string]string{"id": id}, err)
}

func (s *Server) listSales(w http.ResponseWriter, r *http.Request) {
	sales := s.Coord.Sales()
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err := s.parseDate(raw)
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		sales = s.Coord.SalesOn(day)
	}
	kit.WriteJSON(w, http.StatusOK, s.Coord.Views(sales))
}

func (s *Server) getSale(w http.ResponseWriter, r *http.Request) {
	sale, err := s.Coord.Sale(chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, s.view(sale))
}

func (s *Server) commitSale(w http.ResponseWriter, r *http.Request) {
	var req commitReq
	if !s.decode(w, r, &req) {
		return
	}

	sale, err := s.Coord.CommitSale(r.Context(), req.Lines)
	if err != nil && !errors.Is(err, ErrNotPersisted) {
		s.writeErr(w, r, err)
		return
	}
	s.writeMutation(w, r, http.StatusCreated, s.view(sale), err)
}

func (s *Server) voidSale(w http.ResponseWriter, r *http.Request) {
	sale, err := s.Coord.VoidSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil && !errors.Is(err, ErrNotPersisted) {
		s.writeErr(w, r, err)
		return
	}
	s.writeMutation(w, r, http.StatusOK, s.view(sale), err)
}

func (s *Server) clearSales(w http.ResponseWriter, r *http.Request) {
	var req clearReq
	if !s.decode(w, r, &req) {
		return
	}
	if !req.Confirm {
		s.writeErr(w, r, apperr.Validation("clearing the sales history must be confirmed"))
		return
	}

	n, err := s.Coord.ClearSales(r.Context())
	s.writeMutation(w, r, http.StatusOK, map[string]int{"cleared": n}, err)
}

func (s *Server) importOrder(w http.ResponseWriter, r *http.Request) {
	var req importReq
	if !s.decode(w, r, &req) {
		return
	}

	cart, warnings := s.Coord.DraftCart(req.Cart)
	res, err := s.Coord.ImportOrder(r.Context(), req.Text, cart)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	res.Warnings = append(warnings, res.Warnings...)

	resp := importResp{ImportResult: res}
	if !req.Commit || cart.Len() == 0 {
		kit.WriteJSON(w, http.StatusOK, resp)
		return
	}

	sale, err := s.Coord.CommitSale(r.Context(), cart.Lines())
	if err != nil && !errors.Is(err, ErrNotPersisted) {
		s.writeErr(w, r, err)
		return
	}
	v := s.view(sale)
	resp.Sale = &v
	s.writeMutation(w, r, http.StatusCreated, resp, err)
}

type summaryResp struct {
	Date    string `json:"date"`
	Count   int    `json:"count"`
	Revenue string `json:"revenue"`
	Profit  string `json:"profit"`
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	day := s.now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		var err error
		if day, err = s.parseDate(raw); err != nil {
			s.writeErr(w, r, err)
			return
		}
	}

	sum := s.Coord.Summary(day)
	kit.WriteJSON(w, http.StatusOK, summaryResp{
		Date:    day.Format(dateLayout),
		Count:   sum.Count,
		Revenue: sum.Revenue.StringFixed(2),
		Profit:  sum.Profit.StringFixed(2),
	})
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	products, sales := s.Coord.Snapshot()

	f, err := report.Build(products, sales, s.location())
	if err != nil {
		s.Log.Error("build export", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.FileName(s.now())+`"`)
	w.WriteHeader(http.StatusOK)
	if err := f.Write(w); err != nil {
		s.Log.Warn("write export", zap.Error(err))
	}
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()

	if err := s.Coord.Ping(ctx); err != nil {
		s.Log.Warn("readyz failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := kit.DecodeJSON(w, r, v); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return false
	}
	return true
}

func (s *Server) view(sale ledger.Sale) SaleView {
	return s.Coord.Views([]ledger.Sale{sale})[0]
}

func (s *Server) now() time.Time {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return now().In(s.location())
}

func (s *Server) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

func (s *Server) parseDate(raw string) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), s.location())
	if err != nil {
		return time.Time{}, apperr.Validation("date must look like %s", dateLayout)
	}
	return day, nil
}

func (s *Server) writeMutation(w http.ResponseWriter, r *http.Request, status int, data any, err error) {
	switch {
	case err == nil:
		kit.WriteJSON(w, status, mutation{Data: data})
	case errors.Is(err, ErrNotPersisted):
		kit.WriteJSON(w, status, mutation{Data: data, Warning: ErrNotPersisted.Error()})
	default:
		s.writeErr(w, r, err)
	}
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var short *apperr.InsufficientStockError

	switch {
	case errors.As(err, &short):
		kit.WriteError(w, r, http.StatusConflict, "insufficient stock", map[string]any{
			"product_id": short.ProductID,
			"name":       short.Name,
			"requested":  short.Requested,
			"available":  short.Available,
		})
	case errors.Is(err, apperr.ErrValidation):
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, apperr.ErrNotFound):
		kit.WriteError(w, r, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, apperr.ErrConflict):
		kit.WriteError(w, r, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, orderai.ErrRateLimited):
		kit.WriteError(w, r, http.StatusTooManyRequests, "order interpreter busy, try again shortly", nil)
	case errors.Is(err, apperr.ErrExternalService):
		kit.WriteError(w, r, http.StatusBadGateway, "order interpreter failed", map[string]any{"cause": err.Error()})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
	default:
		s.Log.Error("unhandled error", zap.Error(err), zap.String("path", r.URL.Path))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}
