package database

// resources and files belong to the upload flow; they are created here so a
// fresh local database is usable on its own.
const schema = `
CREATE TABLE IF NOT EXISTS resources (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    uploader_id UUID NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS files (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    resource_id UUID NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
    storage_path TEXT NOT NULL,
    original_filename TEXT NOT NULL,
    mime TEXT NOT NULL DEFAULT 'application/octet-stream',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_files_resource_id ON files (resource_id);

CREATE TABLE IF NOT EXISTS monthly_view_limits (
    user_id UUID NOT NULL,
    month_year VARCHAR(7) NOT NULL,
    views_used INT NOT NULL DEFAULT 0 CHECK (views_used >= 0),
    ads_watched INT NOT NULL DEFAULT 0 CHECK (ads_watched >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, month_year)
);

CREATE TABLE IF NOT EXISTS access_bonus_grants (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    month_year VARCHAR(7) NOT NULL,
    reason TEXT NOT NULL CHECK (reason IN ('upload', 'ad_watch')),
    magnitude INT NOT NULL CHECK (magnitude > 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    FOREIGN KEY (user_id, month_year) REFERENCES monthly_view_limits (user_id, month_year) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_access_bonus_grants_account ON access_bonus_grants (user_id, month_year);

CREATE TABLE IF NOT EXISTS viewed_resources (
    user_id UUID NOT NULL,
    resource_id UUID NOT NULL,
    month_year VARCHAR(7) NOT NULL,
    unlocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, resource_id)
);
CREATE INDEX IF NOT EXISTS idx_viewed_resources_recent ON viewed_resources (user_id, unlocked_at DESC);

CREATE TABLE IF NOT EXISTS dead_letter_messages (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    subscription_name TEXT NOT NULL,
    message_id TEXT NOT NULL,
    payload TEXT NOT NULL,
    attributes JSONB,
    status TEXT NOT NULL DEFAULT 'unprocessed',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (subscription_name, message_id)
);
`
