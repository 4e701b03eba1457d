package mysql

const upsertStoreSQL = `
INSERT INTO stores
  (id, name, address, phone, email, lat, lon, services, is_verified, base_hours, raw)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  name        = VALUES(name),
  address     = VALUES(address),
  phone       = VALUES(phone),
  email       = VALUES(email),
  lat         = VALUES(lat),
  lon         = VALUES(lon),
  services    = VALUES(services),
  is_verified = VALUES(is_verified),
  base_hours  = VALUES(base_hours),
  raw         = VALUES(raw),
  updated_at  = CURRENT_TIMESTAMP
`

// One row per (store, date); re-syncing an override replaces its content.
const insertOverridesPrefix = "INSERT INTO special_hours\n  (store_id, date, label, closed, open_time, close_time)\nVALUES "

const insertOverridesOnDup = ` ON DUPLICATE KEY UPDATE
  label      = VALUES(label),
  closed     = VALUES(closed),
  open_time  = VALUES(open_time),
  close_time = VALUES(close_time)
`

const replaceBaseHoursSQL = `UPDATE stores SET base_hours = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

const insertNotificationSQL = `INSERT INTO notifications (store_id, type, message) VALUES (?, ?, ?)`

const insertStoreUpdateSQL = `INSERT INTO store_updates (store_id, proposed) VALUES (?, ?)`

const getStoreUpdateSQL = `SELECT id, store_id, proposed, approved, created_at FROM store_updates WHERE id = ?`

const approveStoreUpdateSQL = `UPDATE store_updates SET approved = 1 WHERE id = ?`

const insertMissSQL = `
INSERT INTO sync_misses (store_id, http_status, reason)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE seen_at = CURRENT_TIMESTAMP, http_status = VALUES(http_status)
`

const getStoreSQL = `
SELECT id, name, address, phone, email, lat, lon, services, is_verified, base_hours
FROM stores
WHERE id = ?
`

const listOverridesSQL = `
SELECT store_id, date, label, closed, open_time, close_time
FROM special_hours
WHERE store_id = ?
ORDER BY date
`

const listWindowsSQL = `
SELECT id, store_id, day, start_time, end_time
FROM delivery_windows
WHERE store_id = ?
ORDER BY day, start_time
`

const listNotificationsSQL = `
SELECT id, store_id, type, message, created_at
FROM notifications
WHERE store_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`
