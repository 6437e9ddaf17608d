// Package forum implements the community Q&A surface: farmers post
// questions, answer each other, and upvote helpful answers. Persistence
// follows the identity package's store pattern (Postgres via pgx with an
// in-memory fallback); all routes sit behind the authentication gate.
package forum
