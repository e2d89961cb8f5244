package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const schema = `
CREATE TABLE IF NOT EXISTS logs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	experiment_id INTEGER NOT NULL,
	operation     TEXT    NOT NULL,
	phase         TEXT    NOT NULL,
	message       TEXT    NOT NULL DEFAULT '',
	subcode       INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS storage_accounts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	credential_id TEXT NOT NULL,
	name          TEXT NOT NULL UNIQUE,
	description   TEXT NOT NULL DEFAULT '',
	label         TEXT NOT NULL DEFAULT '',
	location      TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS cloud_services (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	credential_id TEXT NOT NULL,
	name          TEXT NOT NULL UNIQUE,
	label         TEXT NOT NULL DEFAULT '',
	location      TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS deployments (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	cloud_service_id INTEGER NOT NULL REFERENCES cloud_services(id) ON DELETE CASCADE,
	name             TEXT NOT NULL,
	slot             TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT '',
	dns              TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMP NOT NULL,
	UNIQUE (cloud_service_id, slot)
);

CREATE TABLE IF NOT EXISTS machines (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	experiment_id INTEGER NOT NULL,
	deployment_id INTEGER NOT NULL REFERENCES deployments(id) ON DELETE CASCADE,
	name          TEXT NOT NULL,
	label         TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT '',
	dns           TEXT NOT NULL DEFAULT '',
	public_ip     TEXT NOT NULL DEFAULT '',
	private_ip    TEXT NOT NULL DEFAULT '',
	size          TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL,
	UNIQUE (deployment_id, name)
);

CREATE TABLE IF NOT EXISTS endpoints (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	machine_id   INTEGER NOT NULL REFERENCES machines(id) ON DELETE CASCADE,
	name         TEXT NOT NULL,
	protocol     TEXT NOT NULL DEFAULT 'tcp',
	public_port  INTEGER NOT NULL,
	private_port INTEGER NOT NULL,
	created_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS environments (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	experiment_id INTEGER NOT NULL,
	machine_id    INTEGER NOT NULL REFERENCES machines(id) ON DELETE CASCADE,
	name          TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'init',
	remote_kind   TEXT NOT NULL DEFAULT '',
	remote_params TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL,
	UNIQUE (experiment_id, name)
);

CREATE TABLE IF NOT EXISTS pending_operations (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	experiment_id INTEGER NOT NULL,
	credential_id TEXT NOT NULL,
	stage         TEXT NOT NULL,
	unit          TEXT NOT NULL DEFAULT '{}',
	handle        TEXT NOT NULL DEFAULT '{}',
	attempt       INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);
`

// SQLiteStore implements Store on an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (and migrates) the database at path. Pass ":memory:" for
// an ephemeral store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	// A single connection keeps the in-memory database coherent and avoids
	// writer contention on disk.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func now() time.Time { return time.Now().UTC() }

// AppendLog writes one provisioning log entry.
func (s *SQLiteStore) AppendLog(ctx context.Context, entry LogEntry) error {
	ts := entry.CreatedAt
	if ts.IsZero() {
		ts = now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (experiment_id, operation, phase, message, subcode, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ExperimentID, entry.Operation, entry.Phase, entry.Message, entry.Subcode, ts)
	return err
}

// Logs returns the experiment's log entries in insertion order.
func (s *SQLiteStore) Logs(ctx context.Context, experimentID int64) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, experiment_id, operation, phase, message, subcode, created_at
		 FROM logs WHERE experiment_id = ? ORDER BY id`, experimentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.ExperimentID, &e.Operation, &e.Phase, &e.Message, &e.Subcode, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpsertStorageAccount inserts or refreshes the account mirror record.
func (s *SQLiteStore) UpsertStorageAccount(ctx context.Context, account StorageAccount) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO storage_accounts (credential_id, name, description, label, location, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			credential_id = excluded.credential_id,
			description   = excluded.description,
			label         = excluded.label,
			location      = excluded.location`,
		account.CredentialID, account.Name, account.Description, account.Label, account.Location, now())
	if err != nil {
		return 0, err
	}
	return s.rowID(ctx, `SELECT id FROM storage_accounts WHERE name = ?`, account.Name)
}

// GetStorageAccount looks up the account mirror record by name.
func (s *SQLiteStore) GetStorageAccount(ctx context.Context, name string) (StorageAccount, bool, error) {
	var a StorageAccount
	err := s.db.QueryRowContext(ctx,
		`SELECT id, credential_id, name, description, label, location, created_at
		 FROM storage_accounts WHERE name = ?`, name).
		Scan(&a.ID, &a.CredentialID, &a.Name, &a.Description, &a.Label, &a.Location, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StorageAccount{}, false, nil
	}
	if err != nil {
		return StorageAccount{}, false, err
	}
	return a, true, nil
}

// DeleteStorageAccount removes the account mirror record.
func (s *SQLiteStore) DeleteStorageAccount(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM storage_accounts WHERE name = ?`, name)
	return err
}

// UpsertCloudService inserts or refreshes the service mirror record.
func (s *SQLiteStore) UpsertCloudService(ctx context.Context, service CloudService) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cloud_services (credential_id, name, label, location, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			credential_id = excluded.credential_id,
			label         = excluded.label,
			location      = excluded.location`,
		service.CredentialID, service.Name, service.Label, service.Location, now())
	if err != nil {
		return 0, err
	}
	return s.rowID(ctx, `SELECT id FROM cloud_services WHERE name = ?`, service.Name)
}

// GetCloudService looks up the service mirror record by name.
func (s *SQLiteStore) GetCloudService(ctx context.Context, name string) (CloudService, bool, error) {
	var c CloudService
	err := s.db.QueryRowContext(ctx,
		`SELECT id, credential_id, name, label, location, created_at
		 FROM cloud_services WHERE name = ?`, name).
		Scan(&c.ID, &c.CredentialID, &c.Name, &c.Label, &c.Location, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CloudService{}, false, nil
	}
	if err != nil {
		return CloudService{}, false, err
	}
	return c, true, nil
}

// DeleteCloudService removes the service and cascades to its deployments,
// machines, and endpoints.
func (s *SQLiteStore) DeleteCloudService(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cloud_services WHERE name = ?`, name)
	return err
}

// UpsertDeployment inserts or refreshes the deployment mirror record.
func (s *SQLiteStore) UpsertDeployment(ctx context.Context, deployment Deployment) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deployments (cloud_service_id, name, slot, status, dns, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cloud_service_id, slot) DO UPDATE SET
			name   = excluded.name,
			status = excluded.status,
			dns    = excluded.dns`,
		deployment.CloudServiceID, deployment.Name, deployment.Slot, deployment.Status, deployment.DNS, now())
	if err != nil {
		return 0, err
	}
	return s.rowID(ctx, `SELECT id FROM deployments WHERE cloud_service_id = ? AND slot = ?`,
		deployment.CloudServiceID, deployment.Slot)
}

// GetDeployment looks up the deployment occupying the service's slot.
func (s *SQLiteStore) GetDeployment(ctx context.Context, serviceName, slot string) (Deployment, bool, error) {
	var d Deployment
	err := s.db.QueryRowContext(ctx,
		`SELECT d.id, d.cloud_service_id, d.name, d.slot, d.status, d.dns, d.created_at
		 FROM deployments d
		 JOIN cloud_services c ON c.id = d.cloud_service_id
		 WHERE c.name = ? AND d.slot = ?`, serviceName, slot).
		Scan(&d.ID, &d.CloudServiceID, &d.Name, &d.Slot, &d.Status, &d.DNS, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Deployment{}, false, nil
	}
	if err != nil {
		return Deployment{}, false, err
	}
	return d, true, nil
}

// DeleteDeployment removes the deployment and cascades to its machines and
// endpoints.
func (s *SQLiteStore) DeleteDeployment(ctx context.Context, serviceName, slot string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM deployments WHERE slot = ? AND cloud_service_id IN
			(SELECT id FROM cloud_services WHERE name = ?)`, slot, serviceName)
	return err
}

// UpsertMachine inserts or refreshes the machine mirror record.
func (s *SQLiteStore) UpsertMachine(ctx context.Context, machine Machine) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO machines (experiment_id, deployment_id, name, label, status, dns, public_ip, private_ip, size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(deployment_id, name) DO UPDATE SET
			experiment_id = excluded.experiment_id,
			label         = excluded.label,
			status        = excluded.status,
			dns           = excluded.dns,
			public_ip     = excluded.public_ip,
			private_ip    = excluded.private_ip,
			size          = excluded.size`,
		machine.ExperimentID, machine.DeploymentID, machine.Name, machine.Label, machine.Status,
		machine.DNS, machine.PublicIP, machine.PrivateIP, machine.Size, now())
	if err != nil {
		return 0, err
	}
	return s.rowID(ctx, `SELECT id FROM machines WHERE deployment_id = ? AND name = ?`,
		machine.DeploymentID, machine.Name)
}

// GetMachine looks up a machine by deployment and name.
func (s *SQLiteStore) GetMachine(ctx context.Context, deploymentID int64, name string) (Machine, bool, error) {
	var m Machine
	err := s.db.QueryRowContext(ctx,
		`SELECT id, experiment_id, deployment_id, name, label, status, dns, public_ip, private_ip, size, created_at
		 FROM machines WHERE deployment_id = ? AND name = ?`, deploymentID, name).
		Scan(&m.ID, &m.ExperimentID, &m.DeploymentID, &m.Name, &m.Label, &m.Status,
			&m.DNS, &m.PublicIP, &m.PrivateIP, &m.Size, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Machine{}, false, nil
	}
	if err != nil {
		return Machine{}, false, err
	}
	return m, true, nil
}

// UpdateMachineStatus sets the machine's observed status.
func (s *SQLiteStore) UpdateMachineStatus(ctx context.Context, machineID int64, status string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE machines SET status = ? WHERE id = ?`, status, machineID)
	return err
}

// DeleteMachine removes the machine and cascades to its endpoints.
func (s *SQLiteStore) DeleteMachine(ctx context.Context, deploymentID int64, name string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM machines WHERE deployment_id = ? AND name = ?`, deploymentID, name)
	return err
}

// ReplaceEndpoints swaps the machine's endpoint set atomically.
func (s *SQLiteStore) ReplaceEndpoints(ctx context.Context, machineID int64, endpoints []Endpoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM endpoints WHERE machine_id = ?`, machineID); err != nil {
		return err
	}
	for _, ep := range endpoints {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO endpoints (machine_id, name, protocol, public_port, private_port, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			machineID, ep.Name, ep.Protocol, ep.PublicPort, ep.PrivatePort, now()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Endpoints returns the machine's endpoints in insertion order.
func (s *SQLiteStore) Endpoints(ctx context.Context, machineID int64) ([]Endpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, machine_id, name, protocol, public_port, private_port, created_at
		 FROM endpoints WHERE machine_id = ? ORDER BY id`, machineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []Endpoint
	for rows.Next() {
		var ep Endpoint
		if err := rows.Scan(&ep.ID, &ep.MachineID, &ep.Name, &ep.Protocol, &ep.PublicPort, &ep.PrivatePort, &ep.CreatedAt); err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, rows.Err()
}

// UpsertEnvironment inserts or refreshes the virtual environment record.
func (s *SQLiteStore) UpsertEnvironment(ctx context.Context, env Environment) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO environments (experiment_id, machine_id, name, status, remote_kind, remote_params, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(experiment_id, name) DO UPDATE SET
			machine_id    = excluded.machine_id,
			status        = excluded.status,
			remote_kind   = excluded.remote_kind,
			remote_params = excluded.remote_params`,
		env.ExperimentID, env.MachineID, env.Name, env.Status, env.RemoteKind, env.RemoteParams, now())
	if err != nil {
		return 0, err
	}
	return s.rowID(ctx, `SELECT id FROM environments WHERE experiment_id = ? AND name = ?`,
		env.ExperimentID, env.Name)
}

// UpdateEnvironmentStatus sets the environment's status.
func (s *SQLiteStore) UpdateEnvironmentStatus(ctx context.Context, envID int64, status string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE environments SET status = ? WHERE id = ?`, status, envID)
	return err
}

// Environments returns the experiment's environments in insertion order.
func (s *SQLiteStore) Environments(ctx context.Context, experimentID int64) ([]Environment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, experiment_id, machine_id, name, status, remote_kind, remote_params, created_at
		 FROM environments WHERE experiment_id = ? ORDER BY id`, experimentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var envs []Environment
	for rows.Next() {
		var e Environment
		if err := rows.Scan(&e.ID, &e.ExperimentID, &e.MachineID, &e.Name, &e.Status, &e.RemoteKind, &e.RemoteParams, &e.CreatedAt); err != nil {
			return nil, err
		}
		envs = append(envs, e)
	}
	return envs, rows.Err()
}

// SavePending records an interrupted poll chain.
func (s *SQLiteStore) SavePending(ctx context.Context, op PendingOperation) (int64, error) {
	ts := now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_operations (experiment_id, credential_id, stage, unit, handle, attempt, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ExperimentID, op.CredentialID, op.Stage, op.Unit, op.Handle, op.Attempt, ts, ts)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdatePending refreshes the attempt counter and handle of a pending row.
func (s *SQLiteStore) UpdatePending(ctx context.Context, op PendingOperation) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_operations SET stage = ?, unit = ?, handle = ?, attempt = ?, updated_at = ?
		 WHERE id = ?`,
		op.Stage, op.Unit, op.Handle, op.Attempt, now(), op.ID)
	return err
}

// DeletePending removes a completed poll chain.
func (s *SQLiteStore) DeletePending(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_operations WHERE id = ?`, id)
	return err
}

// ListPending returns every interrupted poll chain, oldest first.
func (s *SQLiteStore) ListPending(ctx context.Context) ([]PendingOperation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, experiment_id, credential_id, stage, unit, handle, attempt, created_at, updated_at
		 FROM pending_operations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []PendingOperation
	for rows.Next() {
		var op PendingOperation
		if err := rows.Scan(&op.ID, &op.ExperimentID, &op.CredentialID, &op.Stage, &op.Unit, &op.Handle, &op.Attempt, &op.CreatedAt, &op.UpdatedAt); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func (s *SQLiteStore) rowID(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
