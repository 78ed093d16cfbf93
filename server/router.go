package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hyphora/hyphora/ai/core/retrieval"
)

type contextRequest struct {
	Prompt string `json:"prompt"`
	// Budget overrides the configured token budget when positive.
	Budget int `json:"budget"`
}

type contextResponse struct {
	*retrieval.SelectedContext
	// Rendered is the deterministic text form handed to the prompting layer.
	Rendered string `json:"rendered"`
}

func (s *Server) buildContext(c echo.Context) error {
	req := &contextRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request").SetInternal(err)
	}
	if req.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}

	sc, err := s.Pipeline.BuildContext(c.Request().Context(), &retrieval.Request{
		Prompt: req.Prompt,
		Budget: req.Budget,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to build context").SetInternal(err)
	}
	return c.JSON(http.StatusOK, &contextResponse{
		SelectedContext: sc,
		Rendered:        retrieval.Render(sc),
	})
}

type seedsRequest struct {
	Prompt string `json:"prompt"`
}

type seedsResponse struct {
	Candidates     []retrieval.Candidate `json:"candidates"`
	Degraded       bool                  `json:"degraded"`
	DegradedReason string                `json:"degraded_reason,omitempty"`
}

func (s *Server) selectSeeds(c echo.Context) error {
	req := &seedsRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request").SetInternal(err)
	}
	if req.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}

	seeds, err := s.Pipeline.SelectSeeds(c.Request().Context(), req.Prompt)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to select seeds").SetInternal(err)
	}
	return c.JSON(http.StatusOK, &seedsResponse{
		Candidates:     seeds.Candidates,
		Degraded:       seeds.Degraded,
		DegradedReason: seeds.DegradedReason,
	})
}

func (s *Server) syncVault(c echo.Context) error {
	if s.Syncer == nil || s.Profile.VaultPath == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "no vault configured")
	}

	stats, err := s.Syncer.Sync(c.Request().Context(), s.Profile.VaultPath)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to sync vault").SetInternal(err)
	}
	return c.JSON(http.StatusOK, stats)
}

type graphStatsResponse struct {
	Nodes          int      `json:"nodes"`
	Edges          int      `json:"edges"`
	Documents      int      `json:"documents"`
	DanglingCount  int      `json:"dangling_count"`
	DanglingSample []string `json:"dangling_sample,omitempty"`
	Revision       int64    `json:"revision"`
}

func (s *Server) graphStats(c echo.Context) error {
	ctx := c.Request().Context()

	snap, err := s.Pipeline.GraphSnapshot(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to build graph").SetInternal(err)
	}
	linkStats, err := s.Store.GetLinkStats(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load link stats").SetInternal(err)
	}

	return c.JSON(http.StatusOK, &graphStatsResponse{
		Nodes:          snap.Stats.Nodes,
		Edges:          snap.Stats.Edges,
		Documents:      linkStats.DocumentCount,
		DanglingCount:  snap.Stats.DanglingCount,
		DanglingSample: snap.Stats.DanglingSample,
		Revision:       snap.Graph.Revision(),
	})
}
