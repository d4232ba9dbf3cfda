// Copyright 2026 The LangBuilder Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package id generates identifiers for persisted entities.
//
// UUIDv7 is used everywhere so that primary keys sort by creation time,
// which keeps btree inserts append-mostly on the hot assignment table.
package id

import "github.com/google/uuid"

// New returns a new UUIDv7. Falls back to UUIDv4 only if the system
// clock source fails, which uuid.NewV7 reports as an error.
func New() uuid.UUID {
	u, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return u
}
