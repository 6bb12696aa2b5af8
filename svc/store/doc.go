// Package store persists subscriptions and payment transactions.
//
// Memory keeps everything in process and serialises units of work with a
// single mutex, rolling back to a snapshot when the unit fails. Postgres uses
// pgx with the transaction carried in the context, so nested WithinTx calls
// join the outer transaction. Both implement subscription.Store,
// subscription.Transactor and payment.TransactionStore.
package store
