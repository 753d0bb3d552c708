package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/epic1st/execengine/internal/domain/order"
	"github.com/epic1st/execengine/internal/domain/values"
)

// PostgresRepository persists orders keyed by OrderId , with a secondary index on status for
// FindByStatus/FindActive and one on broker_order_id for
// FindByBrokerID. Legs and fills are stored as JSONB — the aggregate owns
// them exclusively, so there is no benefit to normalizing them into rows
// the way a shared entity would need.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// schemaDDL is the persistence layout this repository expects to exist.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS orders (
	order_id TEXT PRIMARY KEY,
	broker_order_id TEXT,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	order_type TEXT NOT NULL,
	quantity NUMERIC NOT NULL,
	limit_price NUMERIC,
	stop_price NUMERIC,
	tif TEXT NOT NULL,
	purpose TEXT NOT NULL,
	status TEXT NOT NULL,
	strategy TEXT NOT NULL DEFAULT '',
	legs JSONB NOT NULL DEFAULT '[]',
	cum_qty NUMERIC NOT NULL DEFAULT 0,
	leaves_qty NUMERIC NOT NULL,
	avg_px NUMERIC NOT NULL DEFAULT 0,
	fills JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_broker_id ON orders(broker_order_id) WHERE broker_order_id IS NOT NULL AND broker_order_id != '';
`

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schemaDDL)
	return err
}

type legDTO struct {
	Sequence int `json:"sequence"`
	InstrumentID string `json:"instrument_id"`
	Side string `json:"side"`
	Quantity string `json:"quantity"`
	Status string `json:"status"`
}

type fillDTO struct {
	FillID string `json:"fill_id"`
	Quantity string `json:"quantity"`
	Price string `json:"price"`
	Time time.Time `json:"time"`
	Venue string `json:"venue"`
}

func (r *PostgresRepository) Save(ctx context.Context, o *order.Order) error {
	legs := make([]legDTO, 0, len(o.Legs()))
	for _, l := range o.Legs() {
		legs = append(legs, legDTO{
			Sequence: l.Sequence,
			InstrumentID: l.InstrumentID.String(),
			Side: string(l.Side),
			Quantity: l.Quantity.String(),
			Status: string(l.Status),
		})
	}
	legsJSON, err := json.Marshal(legs)
	if err != nil {
		return fmt.Errorf("marshal legs: %w", err)
	}

	fills := make([]fillDTO, 0, len(o.Fills()))
	for _, f := range o.Fills() {
		fills = append(fills, fillDTO{
			FillID: f.FillID.String(),
			Quantity: f.Quantity.String(),
			Price: f.Price.String(),
			Time: f.Time.Time(),
			Venue: f.Venue,
		})
	}
	fillsJSON, err := json.Marshal(fills)
	if err != nil {
		return fmt.Errorf("marshal fills: %w", err)
	}

	var limitPrice, stopPrice interface{}
	if lp := o.LimitPrice(); lp != nil {
		limitPrice = lp.String()
	}
	if sp := o.StopPrice(); sp != nil {
		stopPrice = sp.String()
	}

	var brokerID interface{}
	if !o.BrokerID().IsEmpty() {
		brokerID = o.BrokerID().String()
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO orders (
			order_id, broker_order_id, symbol, side, order_type, quantity,
			limit_price, stop_price, tif, purpose, status, strategy, legs,
			cum_qty, leaves_qty, avg_px, fills, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (order_id) DO UPDATE SET
			broker_order_id = EXCLUDED.broker_order_id,
			status = EXCLUDED.status,
			legs = EXCLUDED.legs,
			cum_qty = EXCLUDED.cum_qty,
			leaves_qty = EXCLUDED.leaves_qty,
			avg_px = EXCLUDED.avg_px,
			fills = EXCLUDED.fills,
			updated_at = EXCLUDED.updated_at
	`,
		o.ID().String(), brokerID, o.Symbol().String(), string(o.Side()), string(o.OrderType()),
		o.Quantity().String(), limitPrice, stopPrice, string(o.TIF()), string(o.Purpose()),
		string(o.Status()), string(o.Strategy()), legsJSON,
		o.CumQty().String(), o.LeavesQty().String(), o.AvgPx().String(), fillsJSON,
		o.CreatedAt().Time(), o.UpdatedAt().Time(),
	)
	if err != nil {
		return fmt.Errorf("save order %s: %w", o.ID(), err)
	}
	return nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id values.OrderId) (*order.Order, error) {
	row := r.pool.QueryRow(ctx, selectColumns+` WHERE order_id = $1`, id.String())
	return scanOrder(row)
}

func (r *PostgresRepository) FindByBrokerID(ctx context.Context, brokerID values.BrokerId) (*order.Order, error) {
	row := r.pool.QueryRow(ctx, selectColumns+` WHERE broker_order_id = $1`, brokerID.String())
	return scanOrder(row)
}

func (r *PostgresRepository) FindByStatus(ctx context.Context, statuses ...order.Status) ([]*order.Order, error) {
	strs := make([]string, len(statuses))
	for i, s := range statuses {
		strs[i] = string(s)
	}
	rows, err := r.pool.Query(ctx, selectColumns+` WHERE status = ANY($1)`, strs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (r *PostgresRepository) FindActive(ctx context.Context) ([]*order.Order, error) {
	return r.FindByStatus(ctx,
		order.New, order.PendingNew, order.Accepted, order.PartiallyFilled, order.PendingCancel)
}

const selectColumns = `
	SELECT order_id, broker_order_id, symbol, side, order_type, quantity,
	 limit_price, stop_price, tif, purpose, status, strategy, legs,
	 cum_qty, leaves_qty, avg_px, fills, created_at, updated_at
	FROM orders`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		orderID, brokerID, symbol, side, orderType, quantity string
		limitPrice, stopPrice *string
		tif, purpose, status, strategy string
		legsJSON, fillsJSON []byte
		cumQty, leavesQty, avgPx string
		createdAt, updatedAt time.Time
	)

	err := row.Scan(
		&orderID, &brokerID, &symbol, &side, &orderType, &quantity,
		&limitPrice, &stopPrice, &tif, &purpose, &status, &strategy, &legsJSON,
		&cumQty, &leavesQty, &avgPx, &fillsJSON, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return buildOrder(orderID, brokerID, symbol, side, orderType, quantity,
		limitPrice, stopPrice, tif, purpose, status, strategy, legsJSON,
		cumQty, leavesQty, avgPx, fillsJSON, createdAt, updatedAt)
}

type pgxRows interface {
	Next() bool
	rowScanner
	Err() error
}

func scanOrders(rows pgxRows) ([]*order.Order, error) {
	var out []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func buildOrder(
	orderID, brokerID, symbol, side, orderType, quantity string,
	limitPrice, stopPrice *string,
	tif, purpose, status, strategy string,
	legsJSON []byte,
	cumQty, leavesQty, avgPx string,
	fillsJSON []byte,
	createdAt, updatedAt time.Time,
) (*order.Order, error) {
	sym, err := values.NewSymbol(symbol)
	if err != nil {
		return nil, err
	}
	qty, err := values.QuantityFromString(quantity)
	if err != nil {
		return nil, err
	}

	var lp, sp *values.Money
	if limitPrice != nil {
		m, err := values.MoneyFromString(*limitPrice)
		if err != nil {
			return nil, err
		}
		lp = &m
	}
	if stopPrice != nil {
		m, err := values.MoneyFromString(*stopPrice)
		if err != nil {
			return nil, err
		}
		sp = &m
	}

	var legDTOs []legDTO
	if err := json.Unmarshal(legsJSON, &legDTOs); err != nil {
		return nil, fmt.Errorf("unmarshal legs: %w", err)
	}
	legs := make([]order.OrderLine, 0, len(legDTOs))
	for _, l := range legDTOs {
		instr, err := values.NewSymbol(l.InstrumentID)
		if err != nil {
			return nil, err
		}
		q, err := values.QuantityFromString(l.Quantity)
		if err != nil {
			return nil, err
		}
		legs = append(legs, order.OrderLine{
			Sequence: l.Sequence,
			InstrumentID: instr,
			Side: values.Side(l.Side),
			Quantity: q,
			Status: order.Status(l.Status),
		})
	}

	var fillDTOs []fillDTO
	if err := json.Unmarshal(fillsJSON, &fillDTOs); err != nil {
		return nil, fmt.Errorf("unmarshal fills: %w", err)
	}
	fills := make([]order.FillReport, 0, len(fillDTOs))
	for _, f := range fillDTOs {
		q, err := values.QuantityFromString(f.Quantity)
		if err != nil {
			return nil, err
		}
		px, err := values.MoneyFromString(f.Price)
		if err != nil {
			return nil, err
		}
		fills = append(fills, order.FillReport{
			FillID: values.FillId(f.FillID),
			Quantity: q,
			Price: px,
			Time: values.NewTimestamp(f.Time),
			Venue: f.Venue,
		})
	}

	cq, err := values.QuantityFromString(cumQty)
	if err != nil {
		return nil, err
	}
	lq, err := values.QuantityFromString(leavesQty)
	if err != nil {
		return nil, err
	}
	avg, err := values.MoneyFromString(avgPx)
	if err != nil {
		return nil, err
	}

	return order.Reconstitute(order.ReconstituteParams{
		OrderID: values.OrderId(orderID),
		BrokerID: values.BrokerId(brokerID),
		Symbol: sym,
		Side: values.Side(side),
		OrderType: order.OrderType(orderType),
		Quantity: qty,
		LimitPrice: lp,
		StopPrice: sp,
		TIF: order.TimeInForce(tif),
		Purpose: order.Purpose(purpose),
		Status: order.Status(status),
		Legs: legs,
		Strategy: order.StrategyFamily(strategy),
		Fill: order.ReconstitutePartialFillState(values.OrderId(orderID), qty, cq, lq, avg, fills),
		CreatedAt: values.NewTimestamp(createdAt),
		UpdatedAt: values.NewTimestamp(updatedAt),
	}), nil
}
