package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/banchi-geo/banchi/internal/jsonrpc"
	"github.com/banchi-geo/banchi/pkg/address"
	"github.com/banchi-geo/banchi/pkg/dictionary"
	"github.com/banchi-geo/banchi/pkg/geocoder"
	"github.com/banchi-geo/banchi/pkg/metrics"
)

var errNoMethod = errors.New("no such method")

// Request parameter shapes. client.RemoteTree builds its params with
// matching anonymous structs.
type searchNodeParams struct {
	Query string `json:"query"`
	// Config overrides the server-side defaults for this one call, so
	// concurrent clients can search under different settings.
	Config *geocoder.Config `json:"config"`
}

type reverseParams struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Level int     `json:"level"`
}

type nodeGetParams struct {
	ID uint32 `json:"id"`
}

type searchByAttrParams struct {
	Attr  string `json:"attr"`
	Value string `json:"value"`
}

type azaCodeParams struct {
	Code string `json:"code"`
}

type azaPrefixParams struct {
	Prefix string `json:"prefix"`
}

type datasetGetParams struct {
	ID uint8 `json:"id"`
}

// handleRPC answers a single JSON-RPC call on POST /jsonrpc. RPC
// failures travel inside the envelope, so the HTTP status is 200 for
// anything that parses as a request at all.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req jsonrpc.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusOK, jsonrpc.NewError(nil, jsonrpc.CodeParse, "request body is not valid JSON"))
		return
	}
	if !req.Valid() {
		s.writeJSON(w, http.StatusOK, jsonrpc.NewError(req.ID, jsonrpc.CodeInvalidRequest, "not a JSON-RPC 2.0 call"))
		return
	}

	result, err := s.callMethod(r.Context(), req)
	if err != nil {
		s.writeJSON(w, http.StatusOK, s.errorResponse(req, err))
		return
	}
	resp, err := jsonrpc.NewResponse(req.ID, result)
	if err != nil {
		resp = jsonrpc.NewError(req.ID, jsonrpc.CodeInternal, err.Error())
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// errorResponse maps an application error onto an RPC error code.
// Configuration mistakes arrive inside the params, so they count as
// invalid params; everything else is a server-side failure.
func (s *Server) errorResponse(req jsonrpc.Request, err error) *jsonrpc.Response {
	code := jsonrpc.CodeServer
	switch {
	case errors.Is(err, jsonrpc.ErrInvalidParams), errors.Is(err, geocoder.ErrConfig):
		code = jsonrpc.CodeInvalidParams
	case errors.Is(err, errNoMethod):
		code = jsonrpc.CodeMethodNotFound
	}
	slog.Debug("rpc call failed", "method", req.Method, "error", err)
	return jsonrpc.NewError(req.ID, code, err.Error())
}

func (s *Server) callMethod(ctx context.Context, req jsonrpc.Request) (any, error) {
	switch req.Method {
	case "server.signature":
		return s.tree.Signature(), nil

	case "dictionary.version":
		return s.tree.DictionaryVersion(ctx)

	case "dictionary.readme":
		return s.tree.DictionaryReadme(ctx)

	case "dataset.getAll":
		return s.tree.Datasets(ctx)

	case "dataset.get":
		var p datasetGetParams
		if err := req.UnmarshalParams(&p); err != nil {
			return nil, err
		}
		ds, ok := s.tree.Store().Dataset(p.ID)
		if !ok {
			return nil, fmt.Errorf("dataset %d: %w", p.ID, dictionary.ErrNotFound)
		}
		return ds, nil

	case "node.get":
		var p nodeGetParams
		if err := req.UnmarshalParams(&p); err != nil {
			return nil, err
		}
		return s.tree.Node(ctx, p.ID)

	case "node.count":
		return s.tree.CountRecords(ctx)

	case "node.searchByAttr":
		var p searchByAttrParams
		if err := req.UnmarshalParams(&p); err != nil {
			return nil, err
		}
		nodes, err := s.tree.Store().NodesByNote(p.Attr, p.Value)
		if err != nil {
			return nil, err
		}
		if nodes == nil {
			nodes = []address.Node{}
		}
		return nodes, nil

	case "azaMaster.searchByCode":
		var p azaCodeParams
		if err := req.UnmarshalParams(&p); err != nil {
			return nil, err
		}
		return s.tree.AzaRecordByCode(ctx, p.Code)

	case "azaMaster.scanPrefix":
		var p azaPrefixParams
		if err := req.UnmarshalParams(&p); err != nil {
			return nil, err
		}
		recs := []dictionary.AzaRecord{}
		s.tree.Store().EachAzaPrefix(p.Prefix, func(rec dictionary.AzaRecord) bool {
			recs = append(recs, rec)
			return true
		})
		return recs, nil

	case "tree.searchNode":
		var p searchNodeParams
		if err := req.UnmarshalParams(&p); err != nil {
			return nil, err
		}
		cfg := s.tree.Config()
		if p.Config != nil {
			cfg = *p.Config
		}
		metrics.SearchesTotal.WithLabelValues("forward").Inc()
		results, err := s.tree.SearchNodeWithConfig(ctx, p.Query, cfg)
		if err != nil {
			return nil, err
		}
		if results == nil {
			results = []address.Result{}
		}
		return results, nil

	case "tree.reverse":
		var p reverseParams
		if err := req.UnmarshalParams(&p); err != nil {
			return nil, err
		}
		metrics.SearchesTotal.WithLabelValues("reverse").Inc()
		results, err := s.tree.Reverse(ctx, p.X, p.Y, address.Level(p.Level))
		if err != nil {
			return nil, err
		}
		metrics.SpatialBuildSeconds.Set(s.tree.SpatialBuildDuration().Seconds())
		if results == nil {
			results = []address.ReverseResult{}
		}
		return results, nil
	}

	return nil, fmt.Errorf("%w: %s", errNoMethod, req.Method)
}
