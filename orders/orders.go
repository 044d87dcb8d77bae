// Package orders extracts market orders from decoded cache artifacts.
package orders

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/andreyvit/evecache"
)

// CurrencyCode identifies in-game ISK; the ISO code ISK belongs to the
// Icelandic króna.
const CurrencyCode = "EVE-ISK"

var isk = money.AddCurrency(CurrencyCode, "ISK", "1 $", ".", ",", 2)

// DefaultDescriptor names the row layout of market orders.
const DefaultDescriptor = "marketOrders"

// Descriptor is the column layout of DefaultDescriptor rows.
var Descriptor = evecache.NewDescriptor(DefaultDescriptor,
	evecache.Column{Name: "price", Type: evecache.AdoCurrency},
	evecache.Column{Name: "volRemaining", Type: evecache.AdoR8},
	evecache.Column{Name: "typeID", Type: evecache.AdoI4},
	evecache.Column{Name: "range", Type: evecache.AdoI2},
	evecache.Column{Name: "orderID", Type: evecache.AdoI8},
	evecache.Column{Name: "volEntered", Type: evecache.AdoI4},
	evecache.Column{Name: "minVolume", Type: evecache.AdoI4},
	evecache.Column{Name: "bid", Type: evecache.AdoBool},
	evecache.Column{Name: "issueDate", Type: evecache.AdoFileTime},
	evecache.Column{Name: "duration", Type: evecache.AdoI2},
	evecache.Column{Name: "stationID", Type: evecache.AdoI4},
	evecache.Column{Name: "regionID", Type: evecache.AdoI4},
	evecache.Column{Name: "solarSystemID", Type: evecache.AdoI4},
	evecache.Column{Name: "jumps", Type: evecache.AdoI2},
)

type MarketOrder struct {
	OrderID         int64
	TypeID          int32
	Bid             bool
	Price           *money.Money
	PriceDecimal    decimal.Decimal
	VolumeRemaining float64
	VolumeEntered   int32
	MinVolume       int32
	Range           int16
	Issued          time.Time
	Duration        time.Duration
	StationID       int32
	SolarSystemID   int32
	RegionID        int32
	Jumps           int16
}

// Expires returns the time the order runs out.
func (o *MarketOrder) Expires() time.Time {
	return o.Issued.Add(o.Duration)
}

func (o *MarketOrder) String() string {
	side := "sell"
	if o.Bid {
		side = "buy"
	}
	return fmt.Sprintf("%s order %d: type %d, %v x %.0f at station %d", side, o.OrderID, o.TypeID, o.Price.Display(), o.VolumeRemaining, o.StationID)
}

// ISK converts a decimal amount into money, rounding to cents.
func ISK(amount decimal.Decimal) *money.Money {
	return money.New(amount.Shift(int32(isk.Fraction)).Round(0).IntPart(), CurrencyCode)
}

type Importer struct {
	// Rows decodes orders that arrive as plain tuples instead of objects.
	Rows *evecache.RowDecoder

	// Descriptor names the order rows. Defaults to DefaultDescriptor.
	Descriptor string

	Logger *slog.Logger
}

func (imp *Importer) descriptor() string {
	if imp.Descriptor == "" {
		return DefaultDescriptor
	}
	return imp.Descriptor
}

func (imp *Importer) logger() *slog.Logger {
	if imp.Logger == nil {
		return slog.Default()
	}
	return imp.Logger
}

// FromRow converts one order row.
func (imp *Importer) FromRow(row *evecache.Row) (MarketOrder, error) {
	var o MarketOrder
	var err error
	get := func(column string) int64 {
		if err != nil {
			return 0
		}
		var v int64
		v, err = row.Int(column)
		return v
	}

	o.OrderID = get("orderID")
	o.TypeID = int32(get("typeID"))
	o.VolumeEntered = int32(get("volEntered"))
	o.MinVolume = int32(get("minVolume"))
	o.Range = int16(get("range"))
	o.Duration = time.Duration(get("duration")) * 24 * time.Hour
	o.StationID = int32(get("stationID"))
	o.SolarSystemID = int32(get("solarSystemID"))
	o.RegionID = int32(get("regionID"))
	o.Jumps = int16(get("jumps"))
	if err != nil {
		return MarketOrder{}, err
	}

	if o.PriceDecimal, err = row.Currency("price"); err != nil {
		return MarketOrder{}, err
	}
	o.Price = ISK(o.PriceDecimal)
	if o.VolumeRemaining, err = row.Float("volRemaining"); err != nil {
		return MarketOrder{}, err
	}
	if o.Bid, err = row.Bool("bid"); err != nil {
		return MarketOrder{}, err
	}
	if o.Issued, err = row.Time("issueDate"); err != nil {
		return MarketOrder{}, err
	}
	return o, nil
}

// FromValue collects the orders found anywhere inside v.
func (imp *Importer) FromValue(doc *evecache.Document, v evecache.Value) ([]MarketOrder, error) {
	var result []MarketOrder
	var walk func(v evecache.Value, depth int) error
	walk = func(v evecache.Value, depth int) error {
		v, err := doc.Resolve(v)
		if err != nil {
			return err
		}
		switch v.Kind() {
		case evecache.KindObject:
			row, _ := v.AsRow()
			if row.Descriptor().Name() != imp.descriptor() {
				return nil
			}
			o, err := imp.FromRow(row)
			if err != nil {
				return err
			}
			result = append(result, o)
		case evecache.KindTuple, evecache.KindList:
			// order lists sometimes arrive as bare tuples of the right width
			if depth > 0 && imp.Rows != nil && v.Kind() == evecache.KindTuple && v.Len() == Descriptor.Len() {
				if row, err := imp.Rows.DecodeRow(v, imp.descriptor()); err == nil {
					o, err := imp.FromRow(row)
					if err != nil {
						return err
					}
					result = append(result, o)
					return nil
				}
			}
			for _, item := range v.Items() {
				if err := walk(item, depth+1); err != nil {
					return err
				}
			}
		case evecache.KindDict:
			for _, e := range v.Entries() {
				if err := walk(e.Value, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(v, 0); err != nil {
		return nil, err
	}
	return result, nil
}

// Import extracts the orders of every successfully decoded entry. When
// several artifacts carry orders of the same type, only those of the most
// recently written artifact are kept.
func (imp *Importer) Import(entries []*evecache.Entry) ([]MarketOrder, error) {
	type source struct {
		entry  *evecache.Entry
		orders []MarketOrder
	}
	newest := make(map[int32]*source)
	for _, e := range entries {
		if e.Err != nil || e.Document == nil {
			continue
		}
		found, err := imp.FromValue(e.Document, e.Payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Path, err)
		}
		byType := make(map[int32][]MarketOrder)
		for _, o := range found {
			byType[o.TypeID] = append(byType[o.TypeID], o)
		}
		for typeID, orders := range byType {
			cur := newest[typeID]
			if cur == nil || isNewer(e, cur.entry) {
				newest[typeID] = &source{e, orders}
			}
		}
		imp.logger().Debug("orders: artifact imported", "path", e.Path, "orders", len(found), "types", len(byType))
	}

	var result []MarketOrder
	for _, src := range newest {
		result = append(result, src.orders...)
	}
	slices.SortFunc(result, func(a, b MarketOrder) int {
		return cmp.Or(cmp.Compare(a.TypeID, b.TypeID), cmp.Compare(a.OrderID, b.OrderID))
	})
	return result, nil
}

func isNewer(a, b *evecache.Entry) bool {
	if c := a.ModTime.Compare(b.ModTime); c != 0 {
		return c > 0
	}
	return a.Path > b.Path
}
