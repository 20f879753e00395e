package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// PricingRepo provides access to the 'pricing_policies' and
// 'pricing_rules' tables. A policy is always loaded whole; price
// resolution then runs in memory against the snapshot, so mid-checkout
// rule edits cannot produce a mixed-policy order.
type PricingRepo struct{ DB *sql.DB }

func NewPricingRepo(db *sql.DB) *PricingRepo { return &PricingRepo{DB: db} }

// GetPolicy loads a policy and all of its rules.
func (r *PricingRepo) GetPolicy(ctx context.Context, id uint64) (*model.PricingPolicy, error) {
	var p model.PricingPolicy
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, name FROM pricing_policies WHERE id = ? LIMIT 1",
		id).Scan(&p.ID, &p.Name)
	if err == sql.ErrNoRows {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pricing policy: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, policy_id, seat_type_id, day_of_week, starts_min, ends_min, price_cents FROM pricing_rules WHERE policy_id = ? ORDER BY id",
		id)
	if err != nil {
		return nil, fmt.Errorf("get pricing rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rule     model.PricingRule
			weekday  uint8
			startMin sql.NullInt16
			endMin   sql.NullInt16
		)
		if err := rows.Scan(&rule.ID, &rule.PolicyID, &rule.SeatTypeID,
			&weekday, &startMin, &endMin, &rule.PriceCents); err != nil {
			return nil, fmt.Errorf("scan pricing rule: %w", err)
		}
		rule.Weekday = time.Weekday(weekday)
		if startMin.Valid && endMin.Valid {
			rule.Window = &model.TimeWindow{
				StartMin: uint16(startMin.Int16),
				EndMin:   uint16(endMin.Int16),
			}
		}
		p.Rules = append(p.Rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get pricing rules: %w", err)
	}
	return &p, nil
}

// CreateRule inserts one pricing rule. Window may be nil for a
// whole-day rule.
func (r *PricingRepo) CreateRule(ctx context.Context, rule *model.PricingRule) error {
	var startMin, endMin any
	if rule.Window != nil {
		startMin, endMin = rule.Window.StartMin, rule.Window.EndMin
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO pricing_rules (policy_id, seat_type_id, day_of_week, starts_min, ends_min, price_cents) VALUES (?,?,?,?,?,?)",
		rule.PolicyID, rule.SeatTypeID, uint8(rule.Weekday), startMin, endMin, rule.PriceCents)
	if err != nil {
		return fmt.Errorf("insert pricing rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert pricing rule id: %w", err)
	}
	rule.ID = uint64(id)
	return nil
}
