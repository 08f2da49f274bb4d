package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// progress
//
//	@Summary		websocket stream of iteration events of a run, closed after the final event
//	@Tags			assignments
//	@Param			id	path	string	true	"run id"
//	@Router			/assignments/{id}/progress [get]
func (api *assignmentAPI) progress(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	runId := p.ByName("id")
	events, cancel, err := api.assignmentService.Subscribe(runId)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}
	defer cancel()

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		api.log.Warn("websocket upgrade failed", zap.String("run_id", runId), zap.Error(err))
		return
	}
	defer conn.Close()

	// the client only sends control frames; a read error means it left.
	left := make(chan struct{})
	go func() {
		defer close(left)
		for {
			if _, _, err := wsutil.ReadClientData(conn); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = ws.WriteFrame(conn, ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, "")))
				return
			}
			js, err := json.Marshal(ev)
			if err != nil {
				api.log.Error("failed to encode progress event", zap.String("run_id", runId), zap.Error(err))
				return
			}
			if err := wsutil.WriteServerText(conn, js); err != nil {
				api.log.Debug("progress subscriber gone", zap.String("run_id", runId), zap.Error(err))
				return
			}
		case <-left:
			return
		case <-r.Context().Done():
			return
		}
	}
}
