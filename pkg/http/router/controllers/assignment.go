package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	helper "github.com/TrafficPLANit/PLANit-sub005/pkg/http/router/routerhelper"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

type assignmentAPI struct {
	assignmentService AssignmentService
	log               *zap.Logger
}

func New(assignmentService AssignmentService, log *zap.Logger) *assignmentAPI {
	return &assignmentAPI{
		assignmentService: assignmentService,
		log:               log,
	}
}

func (api *assignmentAPI) Routes(group *helper.RouteGroup) {
	group.GET("/network", api.network)
	group.POST("/assignments", api.submitAssignment)
	group.GET("/assignments/:id", api.assignmentStatus)
	group.GET("/assignments/:id/link-segments", api.linkSegments)
	group.GET("/assignments/:id/skims", api.skims)
	group.GET("/assignments/:id/paths", api.path)
	group.GET("/assignments/:id/progress", api.progress)
}

// network
//
//	@Summary		summary of the loaded network
//	@Tags			network
//	@Produce		json
//	@Router			/network [get]
//	@Success		200	{object}	output.NetworkSummary
func (api *assignmentAPI) network(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := api.writeJSON(w, http.StatusOK, envelope{"data": api.assignmentService.Network()}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

// submitAssignment
//
//	@Summary		queue a traffic assignment run on the loaded network
//	@Tags			assignments
//	@Param			body	body	submitAssignmentRequest	true	"time periods, od demand and run options"
//	@Accept			json
//	@Produce		json
//	@Router			/assignments [post]
//	@Success		202	{object}	submitAssignmentResponse
//	@Failure		400	{object}	errorResponse
func (api *assignmentAPI) submitAssignment(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var request submitAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := r.Body.Close(); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
	if err := validate(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	runId, err := api.assignmentService.Submit(request.toUsecase())
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("Location", "/api/assignments/"+runId)
	if err := api.writeJSON(w, http.StatusAccepted, envelope{"data": submitAssignmentResponse{RunId: runId}},
		headers); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

// assignmentStatus
//
//	@Summary		status of an assignment run
//	@Tags			assignments
//	@Param			id	path	string	true	"run id"
//	@Produce		json
//	@Router			/assignments/{id} [get]
//	@Success		200	{object}	runStatusResponse
//	@Failure		404	{object}	errorResponse
func (api *assignmentAPI) assignmentStatus(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	info, err := api.assignmentService.Status(p.ByName("id"))
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}
	if err := api.writeJSON(w, http.StatusOK, envelope{"data": NewRunStatusResponse(info)}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

type resultQuery struct {
	TimePeriod string  `validate:"required"`
	Mode       string  `validate:"required"`
	MinFlow    float64 `validate:"gte=0"`
}

func parseResultQuery(r *http.Request) (resultQuery, error) {
	query := r.URL.Query()
	req := resultQuery{
		TimePeriod: query.Get("time_period"),
		Mode:       query.Get("mode"),
	}
	if s := query.Get("min_flow"); s != "" {
		minFlow, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return req, errors.New("min_flow must be a valid float")
		}
		req.MinFlow = minFlow
	}
	return req, validate(req)
}

// linkSegments
//
//	@Summary		loaded link segments of one mode in one time period
//	@Tags			assignments
//	@Param			id			path	string	true	"run id"
//	@Param			time_period	query	string	true	"time period external id"
//	@Param			mode		query	string	true	"mode external id"
//	@Param			min_flow	query	number	false	"only segments with at least this flow (pcu/h)"
//	@Produce		json
//	@Router			/assignments/{id}/link-segments [get]
//	@Success		200	{object}	[]linkSegmentResponse
//	@Failure		400	{object}	errorResponse
//	@Failure		404	{object}	errorResponse
//	@Failure		409	{object}	errorResponse
func (api *assignmentAPI) linkSegments(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	query, err := parseResultQuery(r)
	if err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	rows, err := api.assignmentService.LinkSegments(p.ByName("id"), query.TimePeriod, query.Mode, query.MinFlow)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}
	if err := api.writeJSON(w, http.StatusOK, envelope{"data": NewLinkSegmentsResponse(rows)}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

// skims
//
//	@Summary		od travel time skim (hours) of one mode in one time period
//	@Tags			assignments
//	@Param			id			path	string	true	"run id"
//	@Param			time_period	query	string	true	"time period external id"
//	@Param			mode		query	string	true	"mode external id"
//	@Produce		json
//	@Router			/assignments/{id}/skims [get]
//	@Success		200	{object}	[]skimResponse
func (api *assignmentAPI) skims(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	query, err := parseResultQuery(r)
	if err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	entries, err := api.assignmentService.Skims(p.ByName("id"), query.TimePeriod, query.Mode)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}
	if err := api.writeJSON(w, http.StatusOK, envelope{"data": NewSkimsResponse(entries)}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

type pathQuery struct {
	TimePeriod  string `validate:"required"`
	Mode        string `validate:"required"`
	Origin      string `validate:"required"`
	Destination string `validate:"required"`
}

// path
//
//	@Summary		shortest path of the final iteration between two zones
//	@Tags			assignments
//	@Param			id			path	string	true	"run id"
//	@Param			time_period	query	string	true	"time period external id"
//	@Param			mode		query	string	true	"mode external id"
//	@Param			origin		query	string	true	"origin zone external id"
//	@Param			destination	query	string	true	"destination zone external id"
//	@Produce		json
//	@Router			/assignments/{id}/paths [get]
//	@Success		200	{object}	pathResponse
func (api *assignmentAPI) path(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	query := r.URL.Query()
	request := pathQuery{
		TimePeriod:  query.Get("time_period"),
		Mode:        query.Get("mode"),
		Origin:      query.Get("origin"),
		Destination: query.Get("destination"),
	}
	if err := validate(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	odPath, err := api.assignmentService.Path(p.ByName("id"), request.TimePeriod, request.Mode, request.Origin,
		request.Destination)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}
	if err := api.writeJSON(w, http.StatusOK, envelope{"data": NewPathResponse(odPath)}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}
