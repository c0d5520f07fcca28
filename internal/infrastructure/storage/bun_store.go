package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"lmlang/internal/domain"
)

// BunStore is the durable GraphStore backend, built on bun+pgdialect+pgdriver
// with transactional delete-then-insert per save and JSONB columns for
// complex nested payloads, keyed on program id.
type BunStore struct {
	db *bun.DB
}

// NewBunStore opens a pure-Go Postgres connection via pgdriver.
func NewBunStore(dsn string) *BunStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &BunStore{db: db}
}

// InitSchema creates every table this store needs, matching spec.md §6's
// table list.
func (s *BunStore) InitSchema(ctx context.Context) error {
	models := []interface{}{
		(*ProgramModel)(nil),
		(*TypeModel)(nil),
		(*ModuleModel)(nil),
		(*FunctionModel)(nil),
		(*ComputeNodeModel)(nil),
		(*FlowEdgeModel)(nil),
		(*SemanticNodeModel)(nil),
		(*SemanticEdgeModel)(nil),
		(*EditLogModel)(nil),
		(*CheckpointModel)(nil),
		(*AgentConfigModel)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

type ProgramModel struct {
	bun.BaseModel `bun:"table:programs,alias:p"`

	ID             string            `bun:"id,pk"`
	HighWatermarks domain.Watermarks `bun:"high_watermarks,type:jsonb"`
	CreatedAt      time.Time         `bun:"created_at"`
}

type TypeModel struct {
	bun.BaseModel `bun:"table:types,alias:ty"`

	ProgramID string        `bun:"program_id,pk"`
	TypeID    domain.TypeId `bun:"type_id,pk"`
	Payload   domain.LmType `bun:"payload,type:jsonb"`
}

type ModuleModel struct {
	bun.BaseModel `bun:"table:modules,alias:mo"`

	ProgramID string           `bun:"program_id,pk"`
	ModuleID  domain.ModuleId  `bun:"module_id,pk"`
	Payload   domain.ModuleDef `bun:"payload,type:jsonb"`
}

type FunctionModel struct {
	bun.BaseModel `bun:"table:functions,alias:fn"`

	ProgramID  string             `bun:"program_id,pk"`
	FunctionID domain.FunctionId  `bun:"function_id,pk"`
	Payload    domain.FunctionDef `bun:"payload,type:jsonb"`
}

type ComputeNodeModel struct {
	bun.BaseModel `bun:"table:compute_nodes,alias:cn"`

	ProgramID string                `bun:"program_id,pk"`
	NodeID    domain.NodeId         `bun:"node_id,pk"`
	Payload   domain.ComputeNodeRow `bun:"payload,type:jsonb"`
}

type FlowEdgeModel struct {
	bun.BaseModel `bun:"table:flow_edges,alias:fe"`

	ProgramID string             `bun:"program_id,pk"`
	EdgeID    uint64             `bun:"edge_id,pk"`
	Payload   domain.FlowEdgeRow `bun:"payload,type:jsonb"`
}

type SemanticNodeModel struct {
	bun.BaseModel `bun:"table:semantic_nodes,alias:sn"`

	ProgramID string                 `bun:"program_id,pk"`
	Idx       domain.SemNodeIdx      `bun:"idx,pk"`
	Payload   domain.SemanticNodeRow `bun:"payload,type:jsonb"`
}

type SemanticEdgeModel struct {
	bun.BaseModel `bun:"table:semantic_edges,alias:se"`

	ProgramID string                 `bun:"program_id,pk"`
	EdgeID    uint64                 `bun:"edge_id,pk"`
	Payload   domain.SemanticEdgeRow `bun:"payload,type:jsonb"`
}

type EditLogModel struct {
	bun.BaseModel `bun:"table:edit_log,alias:el"`

	ProgramID string              `bun:"program_id,pk"`
	Seq       int64               `bun:"seq,pk"`
	Payload   domain.EditLogEntry `bun:"payload,type:jsonb"`
}

type CheckpointModel struct {
	bun.BaseModel `bun:"table:checkpoints,alias:ck"`

	ProgramID string            `bun:"program_id,pk"`
	Name      string            `bun:"name,pk"`
	Payload   domain.Checkpoint `bun:"payload,type:jsonb"`
}

// AgentConfigModel backs the external agent_configs table from spec.md §6.
type AgentConfigModel struct {
	bun.BaseModel `bun:"table:agent_configs,alias:ac"`

	ID             string         `bun:"id,pk"`
	DisplayName    string         `bun:"display_name"`
	ProviderConfig map[string]any `bun:"provider_config,type:jsonb"`
	TokenHash      string         `bun:"token_hash"`
}

func (s *BunStore) CreateProgram(ctx context.Context, name string) (string, error) {
	id := uuid.New().String()
	dp := domain.Decompose(domain.NewProgramGraph(id))
	if err := s.SaveProgram(ctx, id, dp); err != nil {
		return "", err
	}
	return id, nil
}

// SaveProgram persists a full DecomposedProgram transactionally: delete
// every existing row for this program, then bulk-insert the new set.
func (s *BunStore) SaveProgram(ctx context.Context, id string, dp domain.DecomposedProgram) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		pm := &ProgramModel{ID: id, HighWatermarks: dp.HighWatermarks, CreatedAt: time.Now()}
		if _, err := tx.NewInsert().Model(pm).On("CONFLICT (id) DO UPDATE").Exec(ctx); err != nil {
			return err
		}

		deletes := []interface{}{
			(*TypeModel)(nil), (*ModuleModel)(nil), (*FunctionModel)(nil),
			(*ComputeNodeModel)(nil), (*FlowEdgeModel)(nil),
			(*SemanticNodeModel)(nil), (*SemanticEdgeModel)(nil),
		}
		for _, m := range deletes {
			if _, err := tx.NewDelete().Model(m).Where("program_id = ?", id).Exec(ctx); err != nil {
				return err
			}
		}

		for typeID, t := range dp.Types {
			if _, err := tx.NewInsert().Model(&TypeModel{ProgramID: id, TypeID: typeID, Payload: t}).Exec(ctx); err != nil {
				return err
			}
		}
		for _, m := range dp.Modules {
			if _, err := tx.NewInsert().Model(&ModuleModel{ProgramID: id, ModuleID: m.ID, Payload: m}).Exec(ctx); err != nil {
				return err
			}
		}
		for _, f := range dp.Functions {
			if _, err := tx.NewInsert().Model(&FunctionModel{ProgramID: id, FunctionID: f.ID, Payload: f}).Exec(ctx); err != nil {
				return err
			}
		}
		for _, row := range dp.ComputeNodes {
			if _, err := tx.NewInsert().Model(&ComputeNodeModel{ProgramID: id, NodeID: row.ID, Payload: row}).Exec(ctx); err != nil {
				return err
			}
		}
		for _, row := range dp.FlowEdges {
			if _, err := tx.NewInsert().Model(&FlowEdgeModel{ProgramID: id, EdgeID: row.ID, Payload: row}).Exec(ctx); err != nil {
				return err
			}
		}
		for _, row := range dp.SemanticNodes {
			if _, err := tx.NewInsert().Model(&SemanticNodeModel{ProgramID: id, Idx: row.Node.Idx, Payload: row}).Exec(ctx); err != nil {
				return err
			}
		}
		for _, row := range dp.SemanticEdges {
			if _, err := tx.NewInsert().Model(&SemanticEdgeModel{ProgramID: id, EdgeID: row.ID, Payload: row}).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BunStore) LoadProgram(ctx context.Context, id string) (domain.DecomposedProgram, error) {
	var pm ProgramModel
	if err := s.db.NewSelect().Model(&pm).Where("id = ?", id).Scan(ctx); err != nil {
		return domain.DecomposedProgram{}, &notFoundErr{kind: "program", id: id}
	}

	dp := domain.DecomposedProgram{ProgramID: id, Types: map[domain.TypeId]domain.LmType{}, HighWatermarks: pm.HighWatermarks}

	var types []TypeModel
	if err := s.db.NewSelect().Model(&types).Where("program_id = ?", id).Scan(ctx); err != nil {
		return domain.DecomposedProgram{}, err
	}
	for _, t := range types {
		dp.Types[t.TypeID] = t.Payload
	}

	var modules []ModuleModel
	if err := s.db.NewSelect().Model(&modules).Where("program_id = ?", id).Scan(ctx); err != nil {
		return domain.DecomposedProgram{}, err
	}
	for _, m := range modules {
		dp.Modules = append(dp.Modules, m.Payload)
	}

	var fns []FunctionModel
	if err := s.db.NewSelect().Model(&fns).Where("program_id = ?", id).Scan(ctx); err != nil {
		return domain.DecomposedProgram{}, err
	}
	for _, f := range fns {
		dp.Functions = append(dp.Functions, f.Payload)
	}

	var nodes []ComputeNodeModel
	if err := s.db.NewSelect().Model(&nodes).Where("program_id = ?", id).Scan(ctx); err != nil {
		return domain.DecomposedProgram{}, err
	}
	for _, n := range nodes {
		dp.ComputeNodes = append(dp.ComputeNodes, n.Payload)
	}

	var edges []FlowEdgeModel
	if err := s.db.NewSelect().Model(&edges).Where("program_id = ?", id).Scan(ctx); err != nil {
		return domain.DecomposedProgram{}, err
	}
	for _, e := range edges {
		dp.FlowEdges = append(dp.FlowEdges, e.Payload)
	}

	var semNodes []SemanticNodeModel
	if err := s.db.NewSelect().Model(&semNodes).Where("program_id = ?", id).Scan(ctx); err != nil {
		return domain.DecomposedProgram{}, err
	}
	for _, n := range semNodes {
		dp.SemanticNodes = append(dp.SemanticNodes, n.Payload)
	}

	var semEdges []SemanticEdgeModel
	if err := s.db.NewSelect().Model(&semEdges).Where("program_id = ?", id).Scan(ctx); err != nil {
		return domain.DecomposedProgram{}, err
	}
	for _, e := range semEdges {
		dp.SemanticEdges = append(dp.SemanticEdges, e.Payload)
	}

	return dp, nil
}

func (s *BunStore) DeleteProgram(ctx context.Context, id string) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		models := []interface{}{
			(*ProgramModel)(nil), (*TypeModel)(nil), (*ModuleModel)(nil), (*FunctionModel)(nil),
			(*ComputeNodeModel)(nil), (*FlowEdgeModel)(nil), (*SemanticNodeModel)(nil), (*SemanticEdgeModel)(nil),
			(*EditLogModel)(nil), (*CheckpointModel)(nil),
		}
		for _, m := range models {
			col := "program_id"
			if _, ok := m.(*ProgramModel); ok {
				col = "id"
			}
			if _, err := tx.NewDelete().Model(m).Where(col+" = ?", id).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BunStore) ListPrograms(ctx context.Context) ([]string, error) {
	var rows []ProgramModel
	if err := s.db.NewSelect().Model(&rows).Column("id").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out, nil
}

func (s *BunStore) RecordEdit(ctx context.Context, programID string, entry domain.EditLogEntry) error {
	_, err := s.db.NewInsert().Model(&EditLogModel{ProgramID: programID, Seq: entry.Seq, Payload: entry}).Exec(ctx)
	return err
}

func (s *BunStore) ListEdits(ctx context.Context, programID string) ([]domain.EditLogEntry, error) {
	var rows []EditLogModel
	if err := s.db.NewSelect().Model(&rows).Where("program_id = ?", programID).Order("seq ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.EditLogEntry, len(rows))
	for i, r := range rows {
		out[i] = r.Payload
	}
	return out, nil
}

func (s *BunStore) ClearRedoMarksAfter(ctx context.Context, programID string, seq int64) error {
	_, err := s.db.NewDelete().Model((*EditLogModel)(nil)).Where("program_id = ? AND seq > ?", programID, seq).Exec(ctx)
	return err
}

func (s *BunStore) SaveCheckpoint(ctx context.Context, cp domain.Checkpoint) error {
	_, err := s.db.NewInsert().Model(&CheckpointModel{ProgramID: cp.ProgramID, Name: cp.Name, Payload: cp}).
		On("CONFLICT (program_id, name) DO UPDATE").Exec(ctx)
	return err
}

func (s *BunStore) LoadCheckpoint(ctx context.Context, programID, name string) (domain.Checkpoint, error) {
	var row CheckpointModel
	if err := s.db.NewSelect().Model(&row).Where("program_id = ? AND name = ?", programID, name).Scan(ctx); err != nil {
		return domain.Checkpoint{}, &notFoundErr{kind: "checkpoint", id: name}
	}
	return row.Payload, nil
}

func (s *BunStore) ListCheckpoints(ctx context.Context, programID string) ([]domain.Checkpoint, error) {
	var rows []CheckpointModel
	if err := s.db.NewSelect().Model(&rows).Where("program_id = ?", programID).Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Checkpoint, len(rows))
	for i, r := range rows {
		out[i] = r.Payload
	}
	return out, nil
}

func (s *BunStore) DeleteCheckpoint(ctx context.Context, programID, name string) error {
	_, err := s.db.NewDelete().Model((*CheckpointModel)(nil)).Where("program_id = ? AND name = ?", programID, name).Exec(ctx)
	return err
}

func (s *BunStore) SaveAgentConfig(ctx context.Context, cfg domain.AgentConfig) error {
	_, err := s.db.NewInsert().Model(&AgentConfigModel{
		ID: cfg.ID, DisplayName: cfg.DisplayName, ProviderConfig: cfg.ProviderConfig, TokenHash: cfg.TokenHash,
	}).On("CONFLICT (id) DO UPDATE").Exec(ctx)
	return err
}

func (s *BunStore) LoadAgentConfig(ctx context.Context, id string) (domain.AgentConfig, error) {
	var row AgentConfigModel
	if err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx); err != nil {
		return domain.AgentConfig{}, &notFoundErr{kind: "agent", id: id}
	}
	return domain.AgentConfig{ID: row.ID, DisplayName: row.DisplayName, ProviderConfig: row.ProviderConfig, TokenHash: row.TokenHash}, nil
}

func (s *BunStore) ListAgentConfigs(ctx context.Context) ([]domain.AgentConfig, error) {
	var rows []AgentConfigModel
	if err := s.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.AgentConfig, len(rows))
	for i, r := range rows {
		out[i] = domain.AgentConfig{ID: r.ID, DisplayName: r.DisplayName, ProviderConfig: r.ProviderConfig, TokenHash: r.TokenHash}
	}
	return out, nil
}

func (s *BunStore) DeleteAgentConfig(ctx context.Context, id string) error {
	_, err := s.db.NewDelete().Model((*AgentConfigModel)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

var _ domain.GraphStore = (*BunStore)(nil)
