// Package telemetry decodes the handheld remote's text protocol and holds the
// most recent orientation/gesture snapshot shared with the control loop.
package telemetry

// Field identifies one of the seven values carried by a telemetry message.
type Field int

const (
	OrieX Field = iota
	OrieY
	OrieZ
	Pitch
	Roll
	Gripper
	Height

	numFields
)

var fieldNames = [numFields]string{
	OrieX:   "OrieX",
	OrieY:   "OrieY",
	OrieZ:   "OrieZ",
	Pitch:   "Pitch",
	Roll:    "Roll",
	Gripper: "Gripper",
	Height:  "Height",
}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return "Unknown"
	}
	return fieldNames[f]
}

// LookupField maps a wire key to its Field.
func LookupField(key string) (Field, bool) {
	for f, name := range fieldNames {
		if name == key {
			return Field(f), true
		}
	}
	return 0, false
}

// Fields returns every recognized field in wire order.
func Fields() []Field {
	fields := make([]Field, numFields)
	for i := range fields {
		fields[i] = Field(i)
	}
	return fields
}

// Record is a complete telemetry snapshot. Values are device relative and
// unitless; the zero value is the state before any client has reported.
type Record struct {
	OrientationX float64 `json:"orieX"`
	OrientationY float64 `json:"orieY"`
	OrientationZ float64 `json:"orieZ"`
	Pitch        float64 `json:"pitch"`
	Roll         float64 `json:"roll"`
	GripperLevel float64 `json:"gripper"`
	Height       float64 `json:"height"`
}

// Get returns the value held for f.
func (r Record) Get(f Field) float64 {
	switch f {
	case OrieX:
		return r.OrientationX
	case OrieY:
		return r.OrientationY
	case OrieZ:
		return r.OrientationZ
	case Pitch:
		return r.Pitch
	case Roll:
		return r.Roll
	case Gripper:
		return r.GripperLevel
	case Height:
		return r.Height
	}
	return 0
}

func (r *Record) set(f Field, v float64) {
	switch f {
	case OrieX:
		r.OrientationX = v
	case OrieY:
		r.OrientationY = v
	case OrieZ:
		r.OrientationZ = v
	case Pitch:
		r.Pitch = v
	case Roll:
		r.Roll = v
	case Gripper:
		r.GripperLevel = v
	case Height:
		r.Height = v
	}
}

// Update is the set of recognized values decoded from one Data message.
// Fields the message did not carry are left untouched when applied.
type Update struct {
	values [numFields]float64
	set    [numFields]bool
}

// NewUpdate builds an Update carrying every field of r.
func NewUpdate(r Record) Update {
	var u Update
	for _, f := range Fields() {
		u.Set(f, r.Get(f))
	}
	return u
}

func (u *Update) Set(f Field, v float64) {
	if f < 0 || f >= numFields {
		return
	}
	u.values[f] = v
	u.set[f] = true
}

// Get returns the value for f and whether the message carried it.
func (u Update) Get(f Field) (float64, bool) {
	if f < 0 || f >= numFields {
		return 0, false
	}
	return u.values[f], u.set[f]
}

// Len is the number of recognized fields carried.
func (u Update) Len() int {
	n := 0
	for _, ok := range u.set {
		if ok {
			n++
		}
	}
	return n
}

// Complete reports whether all seven fields are present.
func (u Update) Complete() bool {
	return u.Len() == int(numFields)
}

// Apply returns prev with every carried field replaced.
func (u Update) Apply(prev Record) Record {
	next := prev
	for f, ok := range u.set {
		if ok {
			next.set(Field(f), u.values[f])
		}
	}
	return next
}
