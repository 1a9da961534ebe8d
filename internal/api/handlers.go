package api

import (
	"net/http"

	"github.com/AdguardTeam/contentfilter"
	"github.com/AdguardTeam/contentfilter/rules"
	"github.com/AdguardTeam/contentfilter/userrules"
	"github.com/labstack/echo/v4"
)

// bindValid binds the request data to req and validates it.
func bindValid(c echo.Context, req any) (err error) {
	err = c.Bind(req)
	if err != nil {
		return err
	}

	return c.Validate(req)
}

// checkRequest is the query of GET /check.
type checkRequest struct {
	URL     string `query:"url" validate:"required,url"`
	PageURL string `query:"page" validate:"omitempty,url"`

	// Type is the content type name.  If it's empty, the type is guessed
	// from the URLs.
	Type string `query:"type"`
}

// checkResponse is the response of GET /check.
type checkResponse struct {
	Rule        string `json:"rule,omitempty"`
	Source      string `json:"source"`
	ContentType string `json:"content_type"`
	ListID      *int   `json:"list_id,omitempty"`
	Blocked     bool   `json:"blocked"`
}

// check handles GET /check.
func (s *Server) check(c echo.Context) (err error) {
	req := &checkRequest{}
	err = bindValid(c, req)
	if err != nil {
		return err
	}

	// A request without a page is a top-level navigation.
	isMainFrame := req.PageURL == ""
	if isMainFrame {
		req.PageURL = req.URL
	}

	var ct rules.ContentType
	if req.Type == "" {
		ct = rules.Classify(&rules.ClassifyParams{
			URL:         req.URL,
			PageURL:     req.PageURL,
			IsMainFrame: isMainFrame,
		})
	} else {
		ct, err = rules.ParseContentType(req.Type)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	res := s.engine.MatchRequest(rules.NewRequest(req.URL, req.PageURL, ct))

	return c.JSON(http.StatusOK, newCheckResponse(res, ct))
}

// newCheckResponse converts res to the response.
func newCheckResponse(res *contentfilter.Result, ct rules.ContentType) (resp *checkResponse) {
	resp = &checkResponse{
		Source:      res.Source.String(),
		ContentType: ct.String(),
		Blocked:     res.Blocked,
	}

	if f := res.Filter; f != nil {
		resp.Rule = f.RuleText
		resp.ListID = &f.ListID
	}

	return resp
}

// selectorsRequest is the query of GET /selectors.
type selectorsRequest struct {
	PageURL string `query:"page" validate:"required,url"`
}

// selectorsResponse is the response of GET /selectors.
type selectorsResponse struct {
	Selectors []string `json:"selectors"`
	Generic   bool     `json:"generic"`
}

// selectors handles GET /selectors.
func (s *Server) selectors(c echo.Context) (err error) {
	req := &selectorsRequest{}
	err = bindValid(c, req)
	if err != nil {
		return err
	}

	res := s.engine.CosmeticResult(req.PageURL)
	resp := &selectorsResponse{
		Selectors: res.Selectors,
		Generic:   res.Generic,
	}

	if resp.Selectors == nil {
		resp.Selectors = []string{}
	}

	return c.JSON(http.StatusOK, resp)
}

// userRulesResponse is the response of GET /userrules.
type userRulesResponse struct {
	Rules   []userrules.Rule `json:"rules"`
	Version uint64           `json:"version"`
}

// userRules handles GET /userrules.
func (s *Server) userRules(c echo.Context) (err error) {
	rs := s.user.Rules()
	if rs == nil {
		rs = []userrules.Rule{}
	}

	return c.JSON(http.StatusOK, &userRulesResponse{
		Rules:   rs,
		Version: s.user.Version(),
	})
}

// putUserRuleRequest is the body of PUT /userrules.
type putUserRuleRequest struct {
	// Enabled is a pointer, so that a missing value is an error.
	Enabled *bool  `json:"enabled" validate:"required"`
	Page    string `json:"page" validate:"required"`
	Action  string `json:"action" validate:"required,oneof=allow block"`
}

// putUserRule handles PUT /userrules.
func (s *Server) putUserRule(c echo.Context) (err error) {
	req := &putUserRuleRequest{}
	err = bindValid(c, req)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if req.Action == userrules.ActionAllow.String() {
		err = s.user.AllowPage(ctx, req.Page, *req.Enabled)
	} else {
		err = s.user.BlockPage(ctx, req.Page, *req.Enabled)
	}

	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	return s.userRules(c)
}

// statsResponse is the response of GET /stats.
type statsResponse struct {
	Cache    *contentfilter.CacheStats `json:"cache,omitempty"`
	Rules    int                       `json:"rules"`
	Elements int                       `json:"elements"`
}

// stats handles GET /stats.
func (s *Server) stats(c echo.Context) (err error) {
	resp := &statsResponse{
		Cache: s.engine.CacheStats(),
	}

	if db := s.engine.Database(); db != nil {
		resp.Rules = db.Len()
		resp.Elements = db.Elements.Len()
	}

	return c.JSON(http.StatusOK, resp)
}
