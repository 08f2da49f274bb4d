package datastructure

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	ErrTooManyModes      = errors.New("mode registry is full")
	ErrDuplicateMode     = errors.New("mode external id already registered")
	ErrInvalidModeParams = errors.New("mode pcu and max speed must be positive")
)

// MAX_MODES is bounded by the ModeSet bitset width.
const MAX_MODES = 64

type PredefinedModeType uint8

const (
	CUSTOM_MODE PredefinedModeType = iota
	CAR
	BUS
	TRUCK
	LARGE_VEHICLE
	MOTORCYCLE
	BICYCLE
	PEDESTRIAN
	TRAM
	LIGHTRAIL
	TRAIN
	SUBWAY
)

type modeDefaults struct {
	externalId string
	name       string
	pcu        float64
	maxSpeed   float64 // km/h
}

// predefined mode catalogue, one row per mode instead of one type per mode.
var predefinedModes = map[PredefinedModeType]modeDefaults{
	CAR:           {"car", "car", 1.0, 130},
	BUS:           {"bus", "bus", 2.0, 100},
	TRUCK:         {"truck", "heavy goods vehicle", 2.5, 90},
	LARGE_VEHICLE: {"large_vehicle", "large vehicle", 1.8, 100},
	MOTORCYCLE:    {"motorcycle", "motorcycle", 0.5, 130},
	BICYCLE:       {"bicycle", "bicycle", 0.2, 20},
	PEDESTRIAN:    {"pedestrian", "pedestrian", 0.1, 5},
	TRAM:          {"tram", "tram", 3.0, 70},
	LIGHTRAIL:     {"lightrail", "light rail", 3.5, 80},
	TRAIN:         {"train", "train", 5.0, 140},
	SUBWAY:        {"subway", "subway", 4.0, 80},
}

func ParsePredefinedModeType(s string) (PredefinedModeType, bool) {
	for t, d := range predefinedModes {
		if d.externalId == s {
			return t, true
		}
	}
	return CUSTOM_MODE, false
}

type Mode struct {
	id         Index
	externalId string
	name       string
	pcu        float64
	maxSpeed   float64 // km/h
	predefined PredefinedModeType
}

func (m *Mode) GetID() Index {
	return m.id
}

func (m *Mode) GetExternalId() string {
	return m.externalId
}

func (m *Mode) GetName() string {
	return m.name
}

func (m *Mode) GetPcu() float64 {
	return m.pcu
}

func (m *Mode) GetMaxSpeed() float64 {
	return m.maxSpeed
}

func (m *Mode) GetPredefinedType() PredefinedModeType {
	return m.predefined
}

func (m *Mode) IsPredefined() bool {
	return m.predefined != CUSTOM_MODE
}

// ModeSet is a bitset over mode ids.
type ModeSet uint64

func NewModeSet(modeIds ...Index) ModeSet {
	var s ModeSet
	for _, id := range modeIds {
		s = s.Add(id)
	}
	return s
}

func (s ModeSet) Add(modeId Index) ModeSet {
	return s | (1 << modeId)
}

func (s ModeSet) Remove(modeId Index) ModeSet {
	return s &^ (1 << modeId)
}

func (s ModeSet) Contains(modeId Index) bool {
	return modeId < MAX_MODES && s&(1<<modeId) != 0
}

func (s ModeSet) IsEmpty() bool {
	return s == 0
}

func (s ModeSet) Count() int {
	return bits.OnesCount64(uint64(s))
}

// Modes is the mode registry of one network.
type Modes struct {
	modes        []*Mode
	byExternalId map[string]Index
}

func NewModes() *Modes {
	return &Modes{
		modes:        make([]*Mode, 0, 4),
		byExternalId: make(map[string]Index),
	}
}

func (ms *Modes) Register(ctx *IdContext, externalId, name string, pcu, maxSpeed float64) (*Mode, error) {
	return ms.register(ctx, externalId, name, pcu, maxSpeed, CUSTOM_MODE)
}

func (ms *Modes) RegisterPredefined(ctx *IdContext, t PredefinedModeType) (*Mode, error) {
	d, ok := predefinedModes[t]
	if !ok {
		return nil, fmt.Errorf("unknown predefined mode type %d", t)
	}
	if id, ok := ms.byExternalId[d.externalId]; ok {
		return ms.modes[id], nil
	}
	return ms.register(ctx, d.externalId, d.name, d.pcu, d.maxSpeed, t)
}

func (ms *Modes) register(ctx *IdContext, externalId, name string, pcu, maxSpeed float64,
	t PredefinedModeType) (*Mode, error) {
	if len(ms.modes) >= MAX_MODES {
		return nil, ErrTooManyModes
	}
	if _, ok := ms.byExternalId[externalId]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateMode, externalId)
	}
	if pcu <= 0 || maxSpeed <= 0 {
		return nil, fmt.Errorf("%w: mode %s pcu=%v maxSpeed=%v", ErrInvalidModeParams, externalId, pcu, maxSpeed)
	}
	id := ctx.Next(MODE_IDS)
	if int(id) != len(ms.modes) {
		return nil, fmt.Errorf("mode id %d out of sequence, registry holds %d modes", id, len(ms.modes))
	}
	m := &Mode{
		id:         id,
		externalId: externalId,
		name:       name,
		pcu:        pcu,
		maxSpeed:   maxSpeed,
		predefined: t,
	}
	ms.modes = append(ms.modes, m)
	ms.byExternalId[externalId] = id
	return m, nil
}

func (ms *Modes) Get(id Index) *Mode {
	if int(id) >= len(ms.modes) {
		return nil
	}
	return ms.modes[id]
}

func (ms *Modes) GetByExternalId(externalId string) (*Mode, bool) {
	id, ok := ms.byExternalId[externalId]
	if !ok {
		return nil, false
	}
	return ms.modes[id], true
}

func (ms *Modes) Count() int {
	return len(ms.modes)
}

func (ms *Modes) All() []*Mode {
	return ms.modes
}

// AllModeSet returns the set containing every registered mode.
func (ms *Modes) AllModeSet() ModeSet {
	var s ModeSet
	for _, m := range ms.modes {
		s = s.Add(m.id)
	}
	return s
}
