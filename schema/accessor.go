package schema

import (
	"database/sql"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/syssam/mapper"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	bytesType   = reflect.TypeOf([]byte(nil))
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// bind resolves the struct field of every property in the chain.
func (c *ClassDef) bind() error {
	if c.Type == nil {
		return nil
	}
	if c.Type.Kind() == reflect.Pointer {
		c.Type = c.Type.Elem()
	}
	if c.Type.Kind() != reflect.Struct {
		return mapper.NewConfigurationError(c.Name, "type %s is not a struct", c.Type)
	}
	c.fields = make(map[string][]int, len(c.all))
	for _, p := range c.all {
		f, ok := c.Type.FieldByName(p.Name)
		if !ok || !f.IsExported() {
			return mapper.NewConfigurationError(c.Name, "type %s has no exported field for property %q", c.Type, p.Name)
		}
		c.fields[p.Name] = f.Index
	}
	return nil
}

// New returns a pointer to a new zero instance of the class type.
func (c *ClassDef) New() (any, error) {
	if c.Type == nil {
		return nil, mapper.NewConfigurationError(c.Name, "no Go type is bound to the class")
	}
	return reflect.New(c.Type).Interface(), nil
}

// value returns the addressable struct behind obj, which must be a
// pointer to the class type.
func (c *ClassDef) value(obj any) (reflect.Value, error) {
	v := reflect.ValueOf(obj)
	if c.Type == nil || v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Type() != c.Type {
		return reflect.Value{}, mapper.NewConfigurationError(c.Name, "%T is not a *%v", obj, c.Type)
	}
	return v.Elem(), nil
}

func (c *ClassDef) field(obj any, name string) (reflect.Value, error) {
	v, err := c.value(obj)
	if err != nil {
		return reflect.Value{}, err
	}
	idx, ok := c.fields[name]
	if !ok {
		return reflect.Value{}, mapper.NewConfigurationError(c.Name, "unknown property %q", name)
	}
	return v.FieldByIndex(idx), nil
}

// Get returns the current value of the named property.
func (c *ClassDef) Get(obj any, name string) (any, error) {
	f, err := c.field(obj, name)
	if err != nil {
		return nil, err
	}
	return f.Interface(), nil
}

// Set assigns v to the named property, coercing driver values into the
// property type.
func (c *ClassDef) Set(obj any, name string, v any) error {
	f, err := c.field(obj, name)
	if err != nil {
		return err
	}
	if err := assign(f, v); err != nil {
		return mapper.NewConfigurationError(c.Name, "property %q: %v", name, err)
	}
	return nil
}

// Values returns the current value of every property, keyed by name.
func (c *ClassDef) Values(obj any) (map[string]any, error) {
	v, err := c.value(obj)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(c.fields))
	for name, idx := range c.fields {
		out[name] = v.FieldByIndex(idx).Interface()
	}
	return out, nil
}

// KeyValues returns the current primary key values in key order.
func (c *ClassDef) KeyValues(obj any) ([]any, error) {
	out := make([]any, 0, len(c.key))
	for _, p := range c.key {
		v, err := c.Get(obj, p.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// assign stores v into dst. A nil value stores the zero value.
func assign(dst reflect.Value, v any) error {
	if v == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	src := reflect.ValueOf(v)
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}
	if dst.Kind() == reflect.Pointer {
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), v); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}
	switch dst.Type() {
	case timeType:
		t, err := cast.ToTimeE(v)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	case decimalType:
		d, err := toDecimal(v)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(d))
		return nil
	case uuidType:
		u, err := toUUID(v)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(u))
		return nil
	case bytesType:
		b, err := toBytes(v)
		if err != nil {
			return err
		}
		dst.SetBytes(b)
		return nil
	}
	if dst.CanAddr() && dst.Addr().Type().Implements(scannerType) {
		return dst.Addr().Interface().(sql.Scanner).Scan(v)
	}
	switch dst.Kind() {
	case reflect.String:
		if b, ok := v.([]byte); ok {
			dst.SetString(string(b))
			return nil
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return err
		}
		dst.SetString(s)
	case reflect.Bool:
		b, err := cast.ToBoolE(unbytes(v))
		if err != nil {
			return err
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(unbytes(v))
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(unbytes(v))
		if err != nil {
			return err
		}
		if dst.OverflowUint(n) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(unbytes(v))
		if err != nil {
			return err
		}
		dst.SetFloat(f)
	default:
		if src.Type().ConvertibleTo(dst.Type()) {
			dst.Set(src.Convert(dst.Type()))
			return nil
		}
		return fmt.Errorf("cannot assign %T to %s", v, dst.Type())
	}
	return nil
}

// unbytes turns driver text columns into strings cast can parse.
func unbytes(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case []byte:
		return decimal.NewFromString(string(x))
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(s)
}

func toUUID(v any) (uuid.UUID, error) {
	switch x := v.(type) {
	case []byte:
		if len(x) == 16 {
			return uuid.FromBytes(x)
		}
		return uuid.ParseBytes(x)
	case string:
		return uuid.Parse(x)
	}
	return uuid.Nil, fmt.Errorf("cannot convert %T to uuid", v)
}

func toBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return append([]byte(nil), x...), nil
	case string:
		return []byte(x), nil
	}
	return nil, fmt.Errorf("cannot convert %T to []byte", v)
}
