// Package schema holds the DDL for the workflow tables. Applied by the server
// at startup when migrations are enabled, and by integration tests against
// throwaway containers.
package schema

// DDL creates the workflow tables. Idempotent.
const DDL = `
CREATE TABLE IF NOT EXISTS workflow_records (
	id UUID PRIMARY KEY,
	record_type TEXT NOT NULL,
	status TEXT NOT NULL,
	version BIGINT NOT NULL DEFAULT 1,
	risk_level TEXT,
	risk_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	risk_acceptance JSONB,
	assigned_approvers TEXT[] NOT NULL DEFAULT '{}',
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS workflow_audit_entries (
	id UUID PRIMARY KEY,
	record_id UUID NOT NULL,
	sequence_no BIGINT NOT NULL,
	action TEXT NOT NULL,
	from_state TEXT NOT NULL,
	to_state TEXT,
	actor_id TEXT NOT NULL,
	actor_role TEXT,
	timestamp TIMESTAMPTZ NOT NULL,
	reason TEXT,
	outcome TEXT NOT NULL,
	rejection_kind TEXT,
	rejection_reason TEXT,
	request_id TEXT,
	UNIQUE (record_id, sequence_no)
);

CREATE INDEX IF NOT EXISTS idx_workflow_records_type_status
	ON workflow_records (record_type, status);
CREATE INDEX IF NOT EXISTS idx_workflow_audit_entries_record
	ON workflow_audit_entries (record_id, sequence_no);
`
