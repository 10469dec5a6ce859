package storage

const createTasksTableSQL = `CREATE TABLE IF NOT EXISTS tasks (
    id VARCHAR(50) PRIMARY KEY,
    title VARCHAR(500) NOT NULL,
    description TEXT,
    assignee VARCHAR(50),
    priority VARCHAR(20) DEFAULT 'medium',
    labels TEXT[],
    column_name VARCHAR(50) DEFAULT 'backlog',
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
)`

const listTasksSQL = `SELECT id, title, description, assignee,
    COALESCE(priority, 'medium'), COALESCE(labels, '{}'), COALESCE(column_name, 'backlog'),
    created_at, updated_at
FROM tasks ORDER BY created_at DESC`

// upsertTaskSQL replaces every mutable column on conflict and leaves
// created_at untouched.
const upsertTaskSQL = `INSERT INTO tasks (id, title, description, assignee, priority, labels, column_name)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    title = EXCLUDED.title,
    description = EXCLUDED.description,
    assignee = EXCLUDED.assignee,
    priority = EXCLUDED.priority,
    labels = EXCLUDED.labels,
    column_name = EXCLUDED.column_name,
    updated_at = NOW()`

const updateTaskSQL = `UPDATE tasks SET title = $1, description = $2, assignee = $3, priority = $4,
    labels = $5, column_name = $6, updated_at = NOW()
WHERE id = $7`

const deleteTaskSQL = `DELETE FROM tasks WHERE id = $1`

const seedTaskSQL = `INSERT INTO tasks (id, title, description, assignee, priority, labels, column_name)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`
