package cfgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poolctld/poolctld/internal/corelog"
	"github.com/poolctld/poolctld/internal/eventbus"
)

// JSONBufferSize is the soft output cap for ToJSON/ToJSONModule, matching
// ConfigStore::JSON_BUFFER_SIZE. It is a reporting threshold, not a hard
// truncation of the returned bytes — Go callers get the full document plus
// a Truncated flag, rather than a clipped buffer.
const JSONBufferSize = 1024

// redactedNames are config keys whose value is replaced with "***" in
// ToJSONModule output, regardless of module. ToJSON does not redact.
var redactedNames = map[string]bool{"pass": true, "token": true, "secret": true}

// Store holds the registered variable table, an optional persistence
// Backend, and an optional event bus for change notification.
type Store struct {
	mu    sync.Mutex
	slots []*slot
	index map[string]int // "module/name" -> slot index

	backend Backend
	bus     *eventbus.Bus
	log     *corelog.Hub

	nvsWriteTotal  atomic.Uint32
	nvsWriteWindow atomic.Uint32
	lastSummary    time.Time
}

// New constructs an empty Store. SetBackend/SetEventBus/SetLog wire
// optional collaborators afterward, mirroring ConfigStore's
// setPreferences/setEventBus injection points.
func New() *Store {
	return &Store{index: make(map[string]int, MaxConfigVars)}
}

func (s *Store) SetBackend(b Backend)      { s.backend = b }
func (s *Store) SetEventBus(b *eventbus.Bus) { s.bus = b }
func (s *Store) SetLog(h *corelog.Hub)     { s.log = h }

func keyOf(module, name string) string { return module + "/" + name }

// Register adds d to the table. Append-only: there is no Unregister.
func (s *Store) Register(d ConfigDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.slots) >= MaxConfigVars {
		return ErrFull
	}
	if len(d.Key) > MaxKeyLen {
		return ErrKeyTooLong
	}
	k := keyOf(d.Module, d.Name)
	if _, exists := s.index[k]; exists {
		return ErrDuplicate
	}
	if d.Key != "" {
		for _, sl := range s.slots {
			if sl.desc.Key == d.Key {
				return ErrDuplicate
			}
		}
	}

	value := d.Default
	if d.Type == TypeString && d.Size > 0 {
		if str, ok := value.(string); ok && len(str) >= d.Size {
			value = str[:d.Size-1]
		}
	}

	s.slots = append(s.slots, &slot{desc: d, value: value})
	s.index[k] = len(s.slots) - 1
	return nil
}

// AddHandler registers a change callback for an already-registered
// variable. Returns ErrNotFound if module/name is unknown.
func (s *Store) AddHandler(module, name string, fn ChangeFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index[keyOf(module, name)]
	if !ok {
		return ErrNotFound
	}
	s.slots[idx].handlers = append(s.slots[idx].handlers, fn)
	return nil
}

// Get returns the current value of module/name.
func (s *Store) Get(module, name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index[keyOf(module, name)]
	if !ok {
		return nil, false
	}
	return s.slots[idx].value, true
}

// Set assigns value to module/name, persisting and notifying on change.
// It is the Go analog of ConfigStore::set, collapsing the original's
// per-T template overloads into one dynamically-typed entry point.
func (s *Store) Set(module, name string, value any) (changed bool, err error) {
	s.mu.Lock()
	idx, ok := s.index[keyOf(module, name)]
	if !ok {
		s.mu.Unlock()
		return false, ErrNotFound
	}
	sl := s.slots[idx]

	if sl.desc.Type == TypeString {
		if str, ok := value.(string); ok && sl.desc.Size > 0 && len(str) >= sl.desc.Size {
			value = str[:sl.desc.Size-1]
		}
	}

	if !valuesDiffer(sl.value, value) {
		s.mu.Unlock()
		return false, nil
	}
	sl.value = value
	handlers := append([]ChangeFunc(nil), sl.handlers...)
	persistent := sl.desc.Persistence == Persistent && sl.desc.Key != "" && s.backend != nil
	desc := sl.desc
	s.mu.Unlock()

	for _, h := range handlers {
		h(value)
	}

	if persistent {
		if err := s.backend.Save(desc.Key, encodeValue(desc.Type, value)); err != nil {
			return true, err
		}
		s.recordWrite()
	}

	s.notifyChanged(desc.Module, desc.Name)
	return true, nil
}

// valuesDiffer reports whether old and new should be treated as a change.
// Per the resolved Open Question on NaN comparison (REDESIGN FLAGS §9):
// a float/double value that is NaN always compares as "different", even
// against another NaN, so a stuck sensor rewriting NaN every tick keeps
// firing change notifications rather than going silent after the first one.
func valuesDiffer(old, new any) bool {
	switch o := old.(type) {
	case float32:
		n, ok := new.(float32)
		if !ok {
			return true
		}
		if math.IsNaN(float64(o)) || math.IsNaN(float64(n)) {
			return true
		}
		return o != n
	case float64:
		n, ok := new.(float64)
		if !ok {
			return true
		}
		if math.IsNaN(o) || math.IsNaN(n) {
			return true
		}
		return o != n
	default:
		return old != new
	}
}

func (s *Store) notifyChanged(module, name string) {
	if s.bus == nil {
		return
	}
	key := keyOf(module, name)
	s.mu.Lock()
	if idx, ok := s.index[key]; ok && s.slots[idx].desc.Key != "" {
		key = s.slots[idx].desc.Key
	}
	s.mu.Unlock()
	payload := eventbus.ConfigChangedPayload{Key: key}
	_ = s.bus.Post(eventbus.ConfigChanged, payload.Encode())
}

func (s *Store) recordWrite() {
	s.nvsWriteTotal.Add(1)
	s.nvsWriteWindow.Add(1)
}

// LoadPersistent reads every Persistent variable from the backend into
// its slot, leaving the in-memory default in place when the backend has
// no value yet (first boot).
func (s *Store) LoadPersistent(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.slots {
		if sl.desc.Persistence != Persistent || sl.desc.Key == "" || s.backend == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		raw, ok, err := s.backend.Load(sl.desc.Key)
		if err != nil {
			return fmt.Errorf("cfgstore: load %s: %w", sl.desc.Key, err)
		}
		if !ok {
			continue
		}
		v, err := decodeValue(sl.desc.Type, raw)
		if err != nil {
			if s.log != nil {
				s.log.Warnf("CfgStore", "bad persisted value for %s: %v", sl.desc.Key, err)
			}
			continue
		}
		sl.value = v
	}
	return nil
}

// SavePersistent writes every Persistent variable's current value to the
// backend, mirroring ConfigStore::savePersistent.
func (s *Store) SavePersistent() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend == nil {
		return nil
	}
	for _, sl := range s.slots {
		if sl.desc.Persistence != Persistent || sl.desc.Key == "" {
			continue
		}
		if err := s.backend.Save(sl.desc.Key, encodeValue(sl.desc.Type, sl.value)); err != nil {
			return fmt.Errorf("cfgstore: save %s: %w", sl.desc.Key, err)
		}
		s.recordWrite()
	}
	return nil
}

// LogPressure emits one Info line through the log pipeline every period,
// reporting the rolling write window and lifetime total, then resets the
// window — mirrors ConfigStore::logNvsWriteSummaryIfDue.
func (s *Store) LogPressure(now time.Time, period time.Duration) {
	if s.log == nil {
		return
	}
	if s.lastSummary.IsZero() {
		s.lastSummary = now
		return
	}
	if now.Sub(s.lastSummary) < period {
		return
	}
	s.lastSummary = now
	window := s.nvsWriteWindow.Swap(0)
	total := s.nvsWriteTotal.Load()
	s.log.Infof("CfgStore", "nvs writes: window=%d total=%d", window, total)
}

// ApplyJSON parses doc as a nested {"module":{"name":value,...}} document
// and applies every value present to its registered slot. Unknown
// modules/names are silently ignored, matching ConfigStore::applyJson's
// best-effort patch semantics.
func (s *Store) ApplyJSON(doc []byte) error {
	var patch map[string]map[string]json.RawMessage
	if err := json.Unmarshal(doc, &patch); err != nil {
		return fmt.Errorf("cfgstore: invalid patch: %w", err)
	}
	for module, fields := range patch {
		for name, raw := range fields {
			s.mu.Lock()
			idx, ok := s.index[keyOf(module, name)]
			var desc ConfigDescriptor
			if ok {
				desc = s.slots[idx].desc
			}
			s.mu.Unlock()
			if !ok {
				continue
			}
			v, err := decodeJSONValue(desc.Type, raw)
			if err != nil {
				continue
			}
			if _, err := s.Set(module, name, v); err != nil {
				continue
			}
		}
	}
	return nil
}

// ToJSON serializes every registered variable as a nested
// {"module":{"name":value}} document, unredacted: this is the form
// ApplyJSON reads back, and redacting here would make
// apply_json(serialise_full_config()) overwrite real secrets with the
// redaction placeholder instead of being a no-op.
func (s *Store) ToJSON() ([]byte, error) {
	s.mu.Lock()
	doc := make(map[string]map[string]any)
	for _, sl := range s.slots {
		m, ok := doc[sl.desc.Module]
		if !ok {
			m = make(map[string]any)
			doc[sl.desc.Module] = m
		}
		m[sl.desc.Name] = sl.value
	}
	s.mu.Unlock()
	return json.Marshal(doc)
}

// ToJSONModule serializes one module's variables as a flat object,
// reporting whether the encoded size exceeded JSONBufferSize.
func (s *Store) ToJSONModule(module string) (data []byte, truncated bool, err error) {
	s.mu.Lock()
	flat := make(map[string]any)
	for _, sl := range s.slots {
		if sl.desc.Module != module {
			continue
		}
		flat[sl.desc.Name] = redact(sl.desc.Name, sl.value)
	}
	s.mu.Unlock()

	data, err = json.Marshal(flat)
	if err != nil {
		return nil, false, err
	}
	return data, len(data) > JSONBufferSize, nil
}

// ListModules returns the distinct module names present in the table, in
// first-registration order.
func (s *Store) ListModules() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, sl := range s.slots {
		if seen[sl.desc.Module] {
			continue
		}
		seen[sl.desc.Module] = true
		out = append(out, sl.desc.Module)
	}
	return out
}

func redact(name string, value any) any {
	if redactedNames[strings.ToLower(name)] {
		return "***"
	}
	return value
}

func encodeValue(t ValueType, v any) string {
	switch t {
	case TypeInt32:
		iv, _ := v.(int32)
		return strconv.FormatInt(int64(iv), 10)
	case TypeUint8:
		uv, _ := v.(uint8)
		return strconv.FormatUint(uint64(uv), 10)
	case TypeBool:
		bv, _ := v.(bool)
		if bv {
			return "1"
		}
		return "0"
	case TypeFloat:
		fv, _ := v.(float32)
		return strconv.FormatFloat(float64(fv), 'g', -1, 32)
	case TypeDouble:
		dv, _ := v.(float64)
		return strconv.FormatFloat(dv, 'g', -1, 64)
	case TypeString:
		sv, _ := v.(string)
		return sv
	default:
		return fmt.Sprint(v)
	}
}

func decodeValue(t ValueType, s string) (any, error) {
	switch t {
	case TypeInt32:
		n, err := strconv.ParseInt(s, 10, 32)
		return int32(n), err
	case TypeUint8:
		n, err := strconv.ParseUint(s, 10, 8)
		return uint8(n), err
	case TypeBool:
		return s == "1" || strings.EqualFold(s, "true"), nil
	case TypeFloat:
		n, err := strconv.ParseFloat(s, 32)
		return float32(n), err
	case TypeDouble:
		n, err := strconv.ParseFloat(s, 64)
		return n, err
	case TypeString:
		return s, nil
	default:
		return nil, fmt.Errorf("cfgstore: unknown type %v", t)
	}
}

func decodeJSONValue(t ValueType, raw json.RawMessage) (any, error) {
	switch t {
	case TypeInt32:
		var n int32
		err := json.Unmarshal(raw, &n)
		return n, err
	case TypeUint8:
		var n uint8
		err := json.Unmarshal(raw, &n)
		return n, err
	case TypeBool:
		var b bool
		err := json.Unmarshal(raw, &b)
		return b, err
	case TypeFloat:
		var f float32
		err := json.Unmarshal(raw, &f)
		return f, err
	case TypeDouble:
		var f float64
		err := json.Unmarshal(raw, &f)
		return f, err
	case TypeString:
		var str string
		err := json.Unmarshal(raw, &str)
		return str, err
	default:
		return nil, fmt.Errorf("cfgstore: unknown type %v", t)
	}
}
