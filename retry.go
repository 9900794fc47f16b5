//----------------------------------------------------------------------
// This file is part of ledlink.
// Copyright (C) 2024-present Bernd Fix   >Y<
//
// ledlink is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// ledlink is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

package ledlink

// DefaultRetryCeiling is the number of reconnect attempts made after a
// disconnect before the link is declared failed.
const DefaultRetryCeiling = 10

// RetryPolicy is a bounded retry counter. It holds no state of its own;
// the caller owns the counter.
type RetryPolicy struct {
	Ceiling int
}

// NewRetryPolicy returns a policy with the given ceiling. A negative
// ceiling is treated as zero (never retry).
func NewRetryPolicy(ceiling int) RetryPolicy {
	if ceiling < 0 {
		ceiling = 0
	}
	return RetryPolicy{Ceiling: ceiling}
}

// ShouldRetry reports whether another attempt is allowed for counter.
func (p RetryPolicy) ShouldRetry(counter int) bool {
	return counter < p.Ceiling
}

// OnAttempt returns the counter after one more attempt.
func (p RetryPolicy) OnAttempt(counter int) int {
	return counter + 1
}
