package apiserver

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/coldbell/mango-v4-go/internal/codec"
	"github.com/coldbell/mango-v4-go/internal/logtrace"
	"github.com/coldbell/mango-v4-go/internal/mango"
	"github.com/coldbell/mango-v4-go/internal/tracestore"
)

const maxRequestBodyBytes = 4 << 20

type listResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type healthResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type programErrorView struct {
	Code    uint32 `json:"code"`
	Hex     string `json:"hex"`
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
}

type argFieldView struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int    `json:"size"`
}

type instructionView struct {
	Name     string              `json:"name"`
	Opcode   string              `json:"opcode"`
	Accounts []mango.AccountRole `json:"accounts"`
	Args     []argFieldView      `json:"args"`
}

type decodeRequest struct {
	Data     string `json:"data"`
	Encoding string `json:"encoding"`
	Kind     string `json:"kind"`
}

type accountResponse struct {
	Address string        `json:"address,omitempty"`
	Kind    string        `json:"kind"`
	Account mango.Account `json:"account"`
}

type traceLogsRequest struct {
	Logs []string `json:"logs"`
}

type traceView struct {
	Rendered string           `json:"rendered"`
	Frames   []logtrace.Frame `json:"frames"`
}

type traceLogsResponse struct {
	Traces  []traceView `json:"traces"`
	Pending int         `json:"pending"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	s.respondJSON(w, http.StatusOK, healthResponse{OK: true})
}

func (s *Service) handleTraces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	if s.traces == nil {
		s.respondError(w, http.StatusServiceUnavailable, "trace store not configured")
		return
	}

	limit, err := parseOptionalInt(r, "limit", 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := parseOptionalInt(r, "offset", 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	failedOnly, err := parseOptionalBool(r, "failed")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	items, normalizedLimit, normalizedOffset, err := s.traces.ListTraces(r.Context(), tracestore.TraceFilter{
		Signature:   strings.TrimSpace(query.Get("signature")),
		Instruction: strings.TrimSpace(query.Get("instruction")),
		ErrorName:   strings.TrimSpace(query.Get("error")),
		FailedOnly:  failedOnly,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		s.logger.Error("list traces failed", "err", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list traces")
		return
	}

	s.respondJSON(w, http.StatusOK, listResponse[logtrace.Record]{
		Items:  items,
		Limit:  normalizedLimit,
		Offset: normalizedOffset,
	})
}

func (s *Service) handleTraceErrorCounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	if s.traces == nil {
		s.respondError(w, http.StatusServiceUnavailable, "trace store not configured")
		return
	}

	counts, err := s.traces.ErrorCounts(r.Context())
	if err != nil {
		s.logger.Error("count trace errors failed", "err", err)
		s.respondError(w, http.StatusInternalServerError, "failed to count errors")
		return
	}
	if counts == nil {
		counts = []tracestore.ErrorCount{}
	}
	s.respondJSON(w, http.StatusOK, counts)
}

// handleTraceLogs reconstructs traces from a log list posted by the caller.
func (s *Service) handleTraceLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondMethodNotAllowed(w)
		return
	}

	var req traceLogsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	resp := traceLogsResponse{Traces: []traceView{}}
	rec := logtrace.New(func(t logtrace.Trace) {
		resp.Traces = append(resp.Traces, traceView{Rendered: t.String(), Frames: t.Frames})
	})
	for _, line := range req.Logs {
		rec.Feed(line)
	}
	resp.Pending = rec.Pending()
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Service) handleErrors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	all := mango.ProgramErrors()
	out := make([]programErrorView, 0, len(all))
	for _, e := range all {
		out = append(out, toProgramErrorView(e))
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleError accepts the code in decimal or 0x-prefixed hex.
func (s *Service) handleError(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	raw := strings.TrimSpace(r.PathValue("code"))
	code, err := strconv.ParseUint(raw, 0, 32)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid code: "+raw)
		return
	}
	e, ok := mango.LookupError(uint32(code))
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown program error "+raw)
		return
	}
	s.respondJSON(w, http.StatusOK, toProgramErrorView(e))
}

func toProgramErrorView(e mango.ProgramError) programErrorView {
	return programErrorView{
		Code:    e.Code,
		Hex:     "0x" + strconv.FormatUint(uint64(e.Code), 16),
		Name:    e.Name,
		Message: e.Msg,
	}
}

func (s *Service) handleInstructions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	defs := mango.Instructions()
	out := make([]instructionView, 0, len(defs))
	for _, def := range defs {
		view, err := toInstructionView(def)
		if err != nil {
			s.logger.Error("describe instruction failed", "instruction", def.Name, "err", err)
			s.respondError(w, http.StatusInternalServerError, "failed to describe instructions")
			return
		}
		out = append(out, view)
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Service) handleInstruction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	def, ok := mango.LookupInstruction(r.PathValue("name"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown instruction")
		return
	}
	view, err := toInstructionView(def)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func toInstructionView(def mango.InstructionDef) (instructionView, error) {
	view := instructionView{
		Name:     def.Name,
		Opcode:   hex.EncodeToString(def.Opcode[:]),
		Accounts: def.Accounts,
		Args:     []argFieldView{},
	}
	if def.Args == nil {
		return view, nil
	}
	schema, err := codec.SchemaFor(def.Args)
	if err != nil {
		return instructionView{}, err
	}
	for _, f := range schema.Fields() {
		view.Args = append(view.Args, argFieldView{Name: f.Name, Type: f.Kind, Size: f.Size})
	}
	return view, nil
}

func (s *Service) handleDecodeAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondMethodNotAllowed(w)
		return
	}

	var req decodeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	data, err := mango.ParseData(req.Encoding, req.Data)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	acc, err := mango.DecodeKind(req.Kind, data)
	if err != nil {
		s.respondError(w, decodeStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, accountResponse{Kind: acc.AccountName(), Account: acc})
}

func (s *Service) handleFetchAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	address, err := solana.PublicKeyFromBase58(r.PathValue("address"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid address: "+err.Error())
		return
	}

	info, err := s.accounts.GetAccount(r.Context(), address)
	if err != nil {
		s.logger.Warn("fetch account failed", "address", address, "err", err)
		s.respondError(w, http.StatusBadGateway, "rpc request failed")
		return
	}
	if info == nil {
		s.respondError(w, http.StatusNotFound, "account not found")
		return
	}
	acc, err := mango.DecodeOwned(s.cfg.ProgramID, address, info, r.URL.Query().Get("kind"))
	if err != nil {
		s.respondError(w, decodeStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, accountResponse{Address: address.String(), Kind: acc.AccountName(), Account: acc})
}

func decodeStatus(err error) int {
	switch {
	case errors.Is(err, mango.ErrUnknownAccountKind):
		return http.StatusBadRequest
	case errors.Is(err, mango.ErrAccountNotFound):
		return http.StatusNotFound
	default:
		// Foreign owners and malformed bodies alike.
		return http.StatusUnprocessableEntity
	}
}

func (s *Service) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
