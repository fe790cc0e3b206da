package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Speshl/gorrc_hexapod/internal/models"
	"github.com/Speshl/gorrc_hexapod/internal/motion"
	"github.com/google/uuid"
)

const commandTimeout = 5 * time.Second

// submitCommand parses req and queues it with the controller before
// returning, so a transport that submits in arrival order keeps that order.
// The returned func waits for the reply.
func (a *App) submitCommand(ctx context.Context, req models.CommandReq) func() models.CommandResp {
	if req.Id == uuid.Nil {
		req.Id = uuid.New()
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)

	var pending *motion.Pending
	cmd, err := motion.ParseCommand(req.Action, req.Direction, req.Cycles)
	if err == nil {
		log.Infof("command %s from %s: %s", req.Id, req.Source, cmd)
		pending, err = a.controller.Submit(ctx, cmd)
	}

	return func() models.CommandResp {
		defer cancel()
		if err == nil {
			err = pending.Wait(ctx)
		}
		return a.commandResp(req.Id, err)
	}
}

// handleCommand submits req and waits for the reply.
func (a *App) handleCommand(ctx context.Context, req models.CommandReq) models.CommandResp {
	return a.submitCommand(ctx, req)()
}

func (a *App) commandResp(id uuid.UUID, err error) models.CommandResp {
	resp := models.CommandResp{
		Id:    id,
		State: a.controller.State().String(),
	}
	if err != nil {
		log.Warnf("command %s rejected: %s", id, err)
		resp.Error = err.Error()
		return resp
	}
	resp.Accepted = true
	return resp
}

func toStatus(status motion.Status) models.Status {
	modelStatus := models.Status{
		State:     status.State.String(),
		Halted:    status.Halted,
		Gait:      status.Gait.Pattern,
		GaitState: status.Gait.State.String(),
		Phase:     status.Gait.Phase,
		Cycle:     status.Gait.Cycle,
		RunId:     status.Gait.RunID,
		TimeStamp: time.Now().UnixMilli(),
	}
	if !status.Gait.LastPhase.IsZero() {
		modelStatus.LastPhase = status.Gait.LastPhase.UnixMilli()
	}
	return modelStatus
}

func encode(obj any) (string, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("failed encoding %T: %w", obj, err)
	}
	return string(data), nil
}

func decode(in string, obj any) error {
	err := json.Unmarshal([]byte(in), obj)
	if err != nil {
		return fmt.Errorf("failed decoding %T: %w", obj, err)
	}
	return nil
}
