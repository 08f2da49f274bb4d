package demand

import (
	"errors"
	"fmt"

	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
)

var ErrInvalidTimePeriod = errors.New("time period must have a positive duration within one day")

const secondsPerDay = 86400

type TimePeriod struct {
	id              da.Index
	externalId      string
	description     string
	startSeconds    int // since midnight
	durationSeconds int
}

func (tp *TimePeriod) GetID() da.Index {
	return tp.id
}

func (tp *TimePeriod) GetExternalId() string {
	return tp.externalId
}

func (tp *TimePeriod) GetDescription() string {
	return tp.description
}

func (tp *TimePeriod) GetStartSeconds() int {
	return tp.startSeconds
}

func (tp *TimePeriod) GetDurationSeconds() int {
	return tp.durationSeconds
}

func (tp *TimePeriod) GetDurationHours() float64 {
	return float64(tp.durationSeconds) / 3600
}

func (tp *TimePeriod) String() string {
	return fmt.Sprintf("%s [%02d:%02d +%ds]", tp.externalId, tp.startSeconds/3600, (tp.startSeconds%3600)/60,
		tp.durationSeconds)
}

// TimePeriods is the time period registry of one demand set.
type TimePeriods struct {
	periods      []*TimePeriod
	byExternalId map[string]da.Index
}

func NewTimePeriods() *TimePeriods {
	return &TimePeriods{byExternalId: make(map[string]da.Index)}
}

func (tps *TimePeriods) Register(ctx *da.IdContext, externalId, description string,
	startSeconds, durationSeconds int) (*TimePeriod, error) {
	if durationSeconds <= 0 || startSeconds < 0 || startSeconds >= secondsPerDay || durationSeconds > secondsPerDay {
		return nil, fmt.Errorf("%w: %s start=%d duration=%d", ErrInvalidTimePeriod, externalId, startSeconds,
			durationSeconds)
	}
	if _, ok := tps.byExternalId[externalId]; ok {
		return nil, fmt.Errorf("time period %s already registered", externalId)
	}
	id := ctx.Next(da.TIME_PERIOD_IDS)
	if int(id) != len(tps.periods) {
		return nil, fmt.Errorf("time period id %d out of sequence, registry holds %d periods", id, len(tps.periods))
	}
	tp := &TimePeriod{
		id:              id,
		externalId:      externalId,
		description:     description,
		startSeconds:    startSeconds,
		durationSeconds: durationSeconds,
	}
	tps.periods = append(tps.periods, tp)
	tps.byExternalId[externalId] = id
	return tp, nil
}

func (tps *TimePeriods) Get(id da.Index) *TimePeriod {
	if int(id) >= len(tps.periods) {
		return nil
	}
	return tps.periods[id]
}

func (tps *TimePeriods) GetByExternalId(externalId string) (*TimePeriod, bool) {
	id, ok := tps.byExternalId[externalId]
	if !ok {
		return nil, false
	}
	return tps.periods[id], true
}

func (tps *TimePeriods) Count() int {
	return len(tps.periods)
}

// All returns the periods in id order.
func (tps *TimePeriods) All() []*TimePeriod {
	return tps.periods
}
