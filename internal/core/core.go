/*
Core runs one scanning session.

# Module
  - ingestor: merges update records from the feed source into the symbol store
  - scanner: ranks the qualifying symbols of a store snapshot, on a ticker inside the trading window and on demand
  - risk controller: latches the session halt from registered trade results
  - evaluator: keeps the performance statistics of the session

# Source
 1. update records from a file, websocket or kafka feed
 2. trade results from the external execution collaborator

# Produce
  - ranked watchlist to redis and the journal
  - halt state to the HTTP API and the journal
*/
package core
