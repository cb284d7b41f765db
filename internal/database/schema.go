package database

// Schema declares the full wide activities table up front. Every optional
// metric the vendor is known to emit has a declared nullable column, so a
// batch missing some fields never changes the schema. NULL means the
// vendor did not report the field; it is never conflated with zero.
const Schema = `
CREATE TABLE IF NOT EXISTS activities (
    activity_id INTEGER PRIMARY KEY,  -- vendor-assigned, immutable

    activity_name TEXT,
    activity_type_raw TEXT,           -- vendor string, preserved for audit
    activity_type_group TEXT NOT NULL,

    start_time TEXT NOT NULL,         -- local time, 2006-01-02 15:04:05
    day TEXT NOT NULL,                -- 2006-01-02
    week TEXT NOT NULL,               -- Monday on/before day
    month TEXT NOT NULL,              -- 2006-01

    duration_seconds REAL,
    duration_formatted TEXT,
    distance_km REAL,
    calories REAL,

    average_hr REAL,
    max_hr REAL,
    min_hr REAL,

    average_temperature REAL,
    max_temperature REAL,
    min_temperature REAL,

    water_estimated REAL,
    elevation_gain REAL,
    elevation_loss REAL,
    max_elevation REAL,
    min_elevation REAL,

    average_speed REAL,
    max_speed REAL,

    average_run_cadence REAL,
    max_run_cadence REAL,

    total_strokes REAL,
    average_stroke_distance REAL,
    average_swolf REAL,
    average_swim_cadence REAL,
    max_swim_cadence REAL,

    training_effect REAL,
    training_effect_label TEXT,

    moderate_intensity_minutes REAL,
    vigorous_intensity_minutes REAL,

    steps REAL,
    location_name TEXT,
    body_battery_delta REAL,

    training_blocks TEXT NOT NULL DEFAULT '',  -- ", "-joined block names
    off_season BOOLEAN NOT NULL DEFAULT 1,

    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activities_start_time ON activities(start_time DESC);
CREATE INDEX IF NOT EXISTS idx_activities_week ON activities(week);
CREATE INDEX IF NOT EXISTS idx_activities_month ON activities(month);
CREATE INDEX IF NOT EXISTS idx_activities_group ON activities(activity_type_group);
CREATE INDEX IF NOT EXISTS idx_activities_group_week ON activities(activity_type_group, week);
`
