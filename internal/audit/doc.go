// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audit records what happens on the workstation.
//
// # Components
//
// Writer - append-only daily CSV files (audit-YYYYMMDD.csv) with the header
// "timestamp,category,sessionId,message". Writes are serialized; the file
// and its header are created on first use.
//
//	w := audit.NewWriter(cfg.AuditDir())
//	err := w.Record(sessionID, audit.CategorySessionStart, "Kim (0101) 60m")
//
// Trail - pairs every CSV record with the matching database row.
// The CSV record is authoritative: Trail returns its error so callers can
// refuse to act when the action would go unrecorded. Row failures are sent
// to the error log and do not fail the call.
//
//	trail := audit.NewTrail(w, db, errlog)
//	if err := trail.ProcessEnd(ctx, sid, name, path, model.ProcessBlocked); err == nil {
//	    terminate(pid)
//	}
//
// ErrorLog - block-formatted error.log for failures that were contained,
// each tagged with an incident id.
//
//	defer errlog.Recover("process-enforcer")
package audit
