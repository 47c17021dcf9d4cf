// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package host routes all traffic for one match through a single
// point. Every client intent enters the authoritative engine through
// [Router.ProcessAction], and every engine result leaves through the
// router's Send/SendAll fan-out.
//
// The router is deliberately dumb: it validates nothing but the action
// tag, retries nothing, and treats a failing registration as that
// registration's problem: one bad peer never blocks delivery to the
// rest. Credentials, versions, and turn order are the engine's
// business; delivery failures are the endpoint's.
package host
