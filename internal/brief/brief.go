// Package brief classifies the ledger into the five fixed buckets of the
// weekly operational brief.
package brief

import (
	"time"

	"github.com/zulandar/flowguard/internal/models"
)

// ContractVersion identifies the brief shape.
const ContractVersion = "v1"

// BlockKey names one brief bucket.
type BlockKey string

const (
	NextWeekDeliveries BlockKey = "NEXT_WEEK_DELIVERIES"
	AtRisk             BlockKey = "AT_RISK"
	Blocked            BlockKey = "BLOCKED"
	Recurrent          BlockKey = "RECURRENT"
	RecentCompleted    BlockKey = "RECENT_COMPLETED"
)

// Window sizes in days.
const (
	DeliveryWindowDays  = 6
	CompletedWindowDays = 7
)

// Definition describes a block for rendering.
type Definition struct {
	Key         BlockKey `json:"key"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
}

// Definitions lists the blocks in display order.
var Definitions = []Definition{
	{NextWeekDeliveries, "Entregas da semana", "Compromissos ativos com data esperada entre D0 e D+6."},
	{AtRisk, "Em risco", "Compromissos ativos vencidos, bloqueados, com risco alto aberto ou reincidentes."},
	{Blocked, "Bloqueados", "Compromissos ativos com impedimento ativo."},
	{Recurrent, "Reincidentes", "Compromissos ativos com duas ou mais renegociações."},
	{RecentCompleted, "Concluídos nos últimos 7 dias", "Compromissos concluídos recentemente para leitura de progresso."},
}

// Block is one bucket with its matching ids in collection order.
type Block struct {
	Key   BlockKey `json:"key"`
	Label string   `json:"label"`
	Total int      `json:"total"`
	IDs   []string `json:"ids"`
}

// Summary is the compiled brief.
type Summary struct {
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generatedAt"`
	Blocks      []Block   `json:"blocks"`
}

// Block returns the block with key, or an empty block.
func (s Summary) Block(key BlockKey) Block {
	for _, b := range s.Blocks {
		if b.Key == key {
			return b
		}
	}
	return Block{Key: key, IDs: []string{}}
}

// Totals maps block keys to their counts.
func (s Summary) Totals() map[string]int {
	out := make(map[string]int, len(s.Blocks))
	for _, b := range s.Blocks {
		out[string(b.Key)] = b.Total
	}
	return out
}

// Compile classifies collection relative to now. A commitment may appear in
// several blocks but at most once per block.
func Compile(collection []models.Commitment, now time.Time) Summary {
	today := models.StartOfDay(now)
	deliveryEnd := models.AddDays(today, DeliveryWindowDays)
	completedStart := models.AddDays(today, -CompletedWindowDays)

	ids := make(map[BlockKey][]string, len(Definitions))
	for _, c := range collection {
		if c.IsLive() {
			due := models.DayOf(c.DataEsperada, now)
			if !due.Before(today) && !due.After(deliveryEnd) {
				ids[NextWeekDeliveries] = append(ids[NextWeekDeliveries], c.ID)
			}
			if c.IsOverdue(now) || c.HasImpedimento || c.HasOpenHighRisk() || c.IsRecurrent() {
				ids[AtRisk] = append(ids[AtRisk], c.ID)
			}
			if c.HasImpedimento {
				ids[Blocked] = append(ids[Blocked], c.ID)
			}
			if c.IsRecurrent() {
				ids[Recurrent] = append(ids[Recurrent], c.ID)
			}
			continue
		}
		if c.Status != models.StatusDone {
			continue
		}
		at, ok := c.DoneAt()
		if !ok {
			continue
		}
		day := models.DayOf(at, now)
		if !day.Before(completedStart) && !day.After(today) {
			ids[RecentCompleted] = append(ids[RecentCompleted], c.ID)
		}
	}

	blocks := make([]Block, 0, len(Definitions))
	for _, d := range Definitions {
		list := ids[d.Key]
		if list == nil {
			list = []string{}
		}
		blocks = append(blocks, Block{Key: d.Key, Label: d.Label, Total: len(list), IDs: list})
	}
	return Summary{Version: ContractVersion, GeneratedAt: now, Blocks: blocks}
}
