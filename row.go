package evecache

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Row is a decoded record whose fields follow the columns of its descriptor.
type Row struct {
	desc   *Descriptor
	fields []Value
}

func (r *Row) Descriptor() *Descriptor { return r.desc }
func (r *Row) Len() int                { return len(r.fields) }
func (r *Row) Field(i int) Value       { return r.fields[i] }

func (r *Row) Fields() []Value {
	return append([]Value(nil), r.fields...)
}

// Get returns the value of the named column.
func (r *Row) Get(column string) (Value, bool) {
	i := r.desc.ColumnIndex(column)
	if i < 0 {
		return Value{}, false
	}
	return r.fields[i], true
}

func (r *Row) get(column string, kind Kind) (Value, error) {
	v, ok := r.Get(column)
	if !ok {
		return Value{}, rowErrf(r.desc.name, column, ErrInvalidRowFields, "no such column")
	}
	if v.kind != kind {
		return Value{}, rowErrf(r.desc.name, column, ErrInvalidRowFieldType, "got %v, wanted %v", v.kind, kind)
	}
	return v, nil
}

func (r *Row) Int(column string) (int64, error) {
	v, err := r.get(column, KindInt)
	return int64(v.num), err
}

func (r *Row) Float(column string) (float64, error) {
	v, err := r.get(column, KindFloat)
	if err != nil {
		return 0, err
	}
	f, _ := v.AsFloat()
	return f, nil
}

func (r *Row) Bool(column string) (bool, error) {
	v, err := r.get(column, KindBool)
	return v.num != 0, err
}

func (r *Row) Str(column string) (string, error) {
	v, err := r.get(column, KindStr)
	return v.str, err
}

func (r *Row) Bytes(column string) ([]byte, error) {
	v, err := r.get(column, KindBytes)
	if err != nil {
		return nil, err
	}
	return []byte(v.str), nil
}

// Currency returns a CY column as a decimal amount.
func (r *Row) Currency(column string) (decimal.Decimal, error) {
	if err := r.expectType(column, AdoCurrency); err != nil {
		return decimal.Decimal{}, err
	}
	raw, err := r.Int(column)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return CurrencyDecimal(raw), nil
}

// Time returns a FileTime or Date column as UTC time.
func (r *Row) Time(column string) (time.Time, error) {
	i := r.desc.ColumnIndex(column)
	if i < 0 {
		return time.Time{}, rowErrf(r.desc.name, column, ErrInvalidRowFields, "no such column")
	}
	switch r.desc.columns[i].Type {
	case AdoFileTime:
		ticks, err := r.Int(column)
		if err != nil {
			return time.Time{}, err
		}
		return FileTime(ticks), nil
	case AdoDate:
		days, err := r.Float(column)
		if err != nil {
			return time.Time{}, err
		}
		return OleDate(days), nil
	default:
		return time.Time{}, rowErrf(r.desc.name, column, ErrInvalidRowFieldType, "%v is not a time column", r.desc.columns[i].Type)
	}
}

func (r *Row) expectType(column string, typ AdoType) error {
	i := r.desc.ColumnIndex(column)
	if i < 0 {
		return rowErrf(r.desc.name, column, ErrInvalidRowFields, "no such column")
	}
	if actual := r.desc.columns[i].Type; actual != typ {
		return rowErrf(r.desc.name, column, ErrInvalidRowFieldType, "column is %v, wanted %v", actual, typ)
	}
	return nil
}

func (r *Row) Equal(another *Row) bool {
	if r == another {
		return true
	}
	if r == nil || another == nil {
		return false
	}
	return r.desc.Equal(another.desc) && valuesEqual(r.fields, another.fields)
}

// Map returns the row as column name → plain Go value, plus the descriptor
// name under "$descriptor".
func (r *Row) Map() map[string]any {
	m := make(map[string]any, len(r.fields)+1)
	m["$descriptor"] = r.desc.name
	for i, col := range r.desc.columns {
		m[col.Name] = r.fields[i].Interface()
	}
	return m
}

func (r *Row) String() string {
	var buf strings.Builder
	buf.WriteString(r.desc.name)
	buf.WriteByte('(')
	for i, col := range r.desc.columns {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(col.Name)
		buf.WriteByte('=')
		r.fields[i].format(&buf)
	}
	buf.WriteByte(')')
	return buf.String()
}

// RowDecoder materializes rows from decoded containers using descriptors
// from a DescriptorStore. It is safe for concurrent use.
type RowDecoder struct {
	store *DescriptorStore
}

func NewRowDecoder(store *DescriptorStore) *RowDecoder {
	return &RowDecoder{store: store}
}

func (rd *RowDecoder) Store() *DescriptorStore { return rd.store }

// Descriptor looks up and validates a descriptor.
func (rd *RowDecoder) Descriptor(name string) (*Descriptor, error) {
	if err := CheckDescriptorName(name); err != nil {
		return nil, err
	}
	if rd == nil || rd.store == nil {
		return nil, rowErrf(name, "", ErrDescriptorNotFound, "no descriptor store")
	}
	desc, err := rd.store.Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return desc, nil
}

// DecodeRow builds a Row from a Tuple or List using the named descriptor.
func (rd *RowDecoder) DecodeRow(container Value, descriptorName string) (*Row, error) {
	desc, err := rd.Descriptor(descriptorName)
	if err != nil {
		return nil, err
	}
	return MaterializeRow(container, desc)
}

// MaterializeRow builds a Row from a Tuple or List against desc, checking
// every field against its column's ADO type. It is the entry point of
// RowDecoder for callers that already hold the descriptor, and performs
// the same validation as DecodeRow.
func MaterializeRow(container Value, desc *Descriptor) (*Row, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if container.kind != KindTuple && container.kind != KindList {
		return nil, rowErrf(desc.name, "", ErrInvalidRowSize, "got %v, wanted a tuple or list of %d fields", container.kind, desc.Len())
	}
	if len(container.items) != desc.Len() {
		return nil, rowErrf(desc.name, "", ErrInvalidRowSize, "got %d fields, wanted %d", len(container.items), desc.Len())
	}

	fields := make([]Value, len(container.items))
	for i, col := range desc.columns {
		v, ok, shapeErr := col.Type.conform(container.items[i])
		if shapeErr {
			return nil, rowErrf(desc.name, col.Name, ErrInvalidRowFields, "field %d is a %v", i, container.items[i].kind)
		} else if !ok {
			return nil, rowErrf(desc.name, col.Name, ErrInvalidRowFieldType, "field %d: %v does not fit %v", i, container.items[i], col.Type)
		}
		fields[i] = v
	}
	return &Row{desc: desc, fields: fields}, nil
}
