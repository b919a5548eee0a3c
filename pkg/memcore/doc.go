// Package memcore provides the library API for a memcore store: a
// file-backed, append-mostly log of timestamped structured entries with
// schema validation, corruption recovery, labeled backups, restore and
// recall.
//
// This package is the integration point for collaborators such as trigger
// pollers and action executors. It wraps the internal packages into one
// Client.
//
// # Concurrency Safety
//
//   - Every mutating operation (Write, Purge, CreateBackup,
//     RestoreFromBackup, and a Read that has to recover corrupted content)
//     holds an exclusive lock scoped to the store file. Clients opened on the
//     same directory, in one process or several, never lose each other's
//     writes.
//
//   - Read and Recall do not block each other. They always observe a
//     complete store file because writes go through a temp file and an
//     atomic rename.
//
//   - Lock waits honor context cancellation and store.lock_timeout.
//
// # Usage
//
//	client, err := memcore.Open(memcore.Options{Dir: "/var/lib/agent"})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.Write(ctx, model.Entry{"source": "trigger", "data": payload}, memcore.WriteOptions{})
//	recent, _ := client.RecallRaw(ctx, "alpha", memcore.ParseOptions{}, memcore.RecallOptions{Limit: 10})
//	client.Purge(ctx, memcore.PurgeOptions{SoftPurge: true})
package memcore
