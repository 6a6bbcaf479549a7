/**
 * Copyright 2025-present Green Moment
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

const (
	// User queries
	queryGetActiveUsers = `
		SELECT id, username, COALESCE(email, ''), current_league, total_saved_g, current_month_saved_g, created_at, updated_at
		FROM users
		WHERE active = 1
		ORDER BY created_at`

	queryGetUserByUsername = `
		SELECT id, username, COALESCE(email, ''), current_league, total_saved_g, current_month_saved_g, created_at, updated_at
		FROM users
		WHERE username = ? AND active = 1`

	queryInsertUser = `
		INSERT OR IGNORE INTO users (id, username, email) VALUES (?, ?, ?)`

	queryUpdateUserLeague = `
		UPDATE users SET current_league = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	queryGetLifetimeTotal = `
		SELECT total_saved_g FROM users WHERE id = ?`

	querySetLifetimeTotal = `
		UPDATE users SET total_saved_g = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	querySetMonthCache = `
		UPDATE users SET current_month_saved_g = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	// Chore queries
	queryInsertChore = `
		INSERT INTO chores (id, user_id, appliance_type, start_time, end_time, power_draw_kw, estimated_saved_g, average_intensity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetChore = `
		SELECT id, user_id, appliance_type, start_time, end_time, power_draw_kw,
		       estimated_saved_g, average_intensity, actual_emitted_g, worst_case_emitted_g,
		       actual_saved_g, recalculated, created_at
		FROM chores
		WHERE id = ?`

	queryGetChoresInWindow = `
		SELECT id, user_id, appliance_type, start_time, end_time, power_draw_kw,
		       estimated_saved_g, average_intensity, actual_emitted_g, worst_case_emitted_g,
		       actual_saved_g, recalculated, created_at
		FROM chores
		WHERE user_id = ? AND start_time >= ? AND start_time < ?
		ORDER BY start_time`

	queryMarkChoreRecalculated = `
		UPDATE chores
		SET actual_emitted_g = ?, worst_case_emitted_g = ?, actual_saved_g = ?, recalculated = 1
		WHERE id = ?`

	// Progress ledger queries
	queryUpsertProgress = `
		INSERT INTO daily_carbon_progress (user_id, date, daily_saved_g, cumulative_saved_g, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, date) DO UPDATE SET
			daily_saved_g = excluded.daily_saved_g,
			cumulative_saved_g = excluded.cumulative_saved_g,
			updated_at = CURRENT_TIMESTAMP`

	queryGetMonthProgress = `
		SELECT user_id, date, daily_saved_g, cumulative_saved_g, updated_at
		FROM daily_carbon_progress
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date`

	// Monthly summary queries
	queryUpsertSummary = `
		INSERT INTO monthly_summaries (user_id, month, year, total_saved_g, league_at_start, league_at_end, upgraded, finalized_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, year, month) DO UPDATE SET
			total_saved_g = excluded.total_saved_g,
			league_at_start = excluded.league_at_start,
			league_at_end = excluded.league_at_end,
			upgraded = excluded.upgraded,
			finalized_at = CURRENT_TIMESTAMP`

	queryGetSummary = `
		SELECT user_id, month, year, total_saved_g, league_at_start, league_at_end, upgraded, finalized_at
		FROM monthly_summaries
		WHERE user_id = ? AND year = ? AND month = ?`

	// Generation sample queries
	queryInsertGeneration = `
		INSERT INTO generation_records (observed_at, fuel_type, generation_mw) VALUES (?, ?, ?)`

	queryGetGenerationRange = `
		SELECT observed_at, fuel_type, generation_mw, ingest_seq
		FROM generation_records
		WHERE observed_at >= ? AND observed_at < ?
		ORDER BY observed_at, ingest_seq`

	queryInsertWeather = `
		INSERT INTO weather_observations (observed_at, station, metric, value) VALUES (?, ?, ?, ?)`

	// Deferral queries
	queryUpsertDeferral = `
		INSERT INTO calculation_deferrals (user_id, date, reason, recorded_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, date) DO UPDATE SET
			reason = excluded.reason,
			recorded_at = CURRENT_TIMESTAMP`

	queryListDeferrals = `
		SELECT user_id, date, reason, recorded_at
		FROM calculation_deferrals
		ORDER BY date, user_id`

	queryClearDeferral = `
		DELETE FROM calculation_deferrals WHERE user_id = ? AND date = ?`
)
