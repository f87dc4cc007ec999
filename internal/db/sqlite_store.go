package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/models"
	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/services"
)

var (
	_ services.QuestionStore   = (*SQLiteStore)(nil)
	_ services.SubmissionStore = (*SQLiteStore)(nil)
	_ services.AnalyticsStore  = (*SQLiteStore)(nil)
	_ services.AuthStore       = (*SQLiteStore)(nil)
)

type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file at path. Foreign keys and
// the busy timeout are set through the DSN so every pooled connection gets them.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", filepath.ToSlash(path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) logErr(ctx context.Context, op string, err error) error {
	if err != nil {
		slog.ErrorContext(ctx, "sqlite store error", "op", op, "error", err)
	}
	return err
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func toNullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func encodeOptions(opts []string) (sql.NullString, error) {
	opts = models.NormalizeOptions(opts)
	if len(opts) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(opts)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// --- Questions ---

const questionColumns = "id, question_type, question_text, options, active"

func scanQuestion(r rowScanner) (*models.Question, error) {
	var (
		q      models.Question
		typ    string
		opts   sql.NullString
		active int64
	)
	if err := r.Scan(&q.ID, &typ, &q.Text, &opts, &active); err != nil {
		return nil, err
	}
	q.Type = models.QuestionType(typ)
	q.Active = active != 0
	if opts.Valid {
		q.Options = models.ParseOptions(opts.String)
	}
	return &q, nil
}

func (s *SQLiteStore) GetQuestion(ctx context.Context, id int64) (*models.Question, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+questionColumns+" FROM questions WHERE id = ?", id)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.logErr(ctx, "GetQuestion", err)
	}
	return q, nil
}

func (s *SQLiteStore) listQuestions(ctx context.Context, op, where string) ([]*models.Question, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+questionColumns+" FROM questions "+where+" ORDER BY id ASC")
	if err != nil {
		return nil, s.logErr(ctx, op, err)
	}
	defer rows.Close()
	out := []*models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, s.logErr(ctx, op+" scan", err)
		}
		out = append(out, q)
	}
	return out, s.logErr(ctx, op+" rows", rows.Err())
}

func (s *SQLiteStore) ListActiveQuestions(ctx context.Context) ([]*models.Question, error) {
	return s.listQuestions(ctx, "ListActiveQuestions", "WHERE active = 1")
}

func (s *SQLiteStore) ListQuestions(ctx context.Context) ([]*models.Question, error) {
	return s.listQuestions(ctx, "ListQuestions", "")
}

// AddQuestion inserts q and returns its id. A positive q.ID is kept as is.
func (s *SQLiteStore) AddQuestion(ctx context.Context, q *models.Question) (int64, error) {
	if q == nil {
		return 0, errors.New("nil question")
	}
	if !q.Type.Valid() {
		return 0, fmt.Errorf("unknown question type %q", q.Type)
	}
	opts, err := encodeOptions(q.Options)
	if err != nil {
		return 0, err
	}
	var id any
	if q.ID > 0 {
		id = q.ID
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO questions (id, question_type, question_text, options, active) VALUES (?, ?, ?, ?, ?)",
		id, string(q.Type), q.Text, opts, boolToInt64(q.Active))
	if err != nil {
		return 0, s.logErr(ctx, "AddQuestion", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) CountQuestions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM questions").Scan(&n)
	return n, s.logErr(ctx, "CountQuestions", err)
}

// --- Submissions ---

type submissionTx struct {
	tx *sql.Tx
}

// BeginSubmission starts the transaction a whole submission is written in.
func (s *SQLiteStore) BeginSubmission(ctx context.Context) (services.SubmissionTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.logErr(ctx, "BeginSubmission", err)
	}
	return &submissionTx{tx: tx}, nil
}

func (t *submissionTx) CreateSubmission(ctx context.Context, sub *models.Submission) (string, error) {
	var submitter sql.NullString
	if sub.SubmitterID != nil {
		submitter = toNullString(*sub.SubmitterID)
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO feedback (id, submitter_type, submitter_id, overall_sentiment_score, overall_sentiment_label, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sub.ID, string(sub.Kind), submitter, sub.OverallScore, string(sub.OverallLabel), sub.CreatedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("insert feedback: %w", err)
	}
	return sub.ID, nil
}

func (t *submissionTx) AddAnswer(ctx context.Context, a *models.Answer) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO feedback_answers (feedback_id, question_id, answer_text, sentiment_score, sentiment_label, position)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.SubmissionID, a.QuestionID, a.RawValue, a.Score, string(a.Label), a.Position)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		a.ID = id
	}
	return nil
}

func (t *submissionTx) UpdateOverall(ctx context.Context, submissionID string, score float64, label models.Label) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE feedback SET overall_sentiment_score = ?, overall_sentiment_label = ? WHERE id = ?",
		score, string(label), submissionID)
	if err != nil {
		return fmt.Errorf("update overall: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("update overall: submission %s not found", submissionID)
	}
	return nil
}

func (t *submissionTx) Commit() error   { return t.tx.Commit() }
func (t *submissionTx) Rollback() error { return t.tx.Rollback() }

const submissionSelect = `SELECT f.id, f.submitter_type, f.submitter_id, COALESCE(u.username, ''),
	f.overall_sentiment_score, f.overall_sentiment_label, f.created_at
	FROM feedback f LEFT JOIN users u ON u.id = f.submitter_id AND f.submitter_type = 'user'`

func scanSubmission(r rowScanner) (*models.Submission, error) {
	var (
		sub       models.Submission
		kind      string
		submitter sql.NullString
		label     string
	)
	if err := r.Scan(&sub.ID, &kind, &submitter, &sub.Username, &sub.OverallScore, &label, &sub.CreatedAt); err != nil {
		return nil, err
	}
	sub.Kind = models.SubmitterKind(kind)
	sub.OverallLabel = models.Label(label)
	if submitter.Valid {
		id := submitter.String
		sub.SubmitterID = &id
	}
	sub.CreatedAt = sub.CreatedAt.UTC()
	return &sub, nil
}

func (s *SQLiteStore) querySubmissions(ctx context.Context, op, query string, args ...any) ([]*models.Submission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.logErr(ctx, op, err)
	}
	defer rows.Close()
	out := []*models.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, s.logErr(ctx, op+" scan", err)
		}
		out = append(out, sub)
	}
	return out, s.logErr(ctx, op+" rows", rows.Err())
}

func (s *SQLiteStore) ListSubmissionsBySubmitter(ctx context.Context, userID string) ([]*models.Submission, error) {
	return s.querySubmissions(ctx, "ListSubmissionsBySubmitter",
		submissionSelect+" WHERE f.submitter_type = 'user' AND f.submitter_id = ? ORDER BY f.created_at DESC, f.id ASC", userID)
}

func (s *SQLiteStore) ListSubmissions(ctx context.Context) ([]*models.Submission, error) {
	return s.querySubmissions(ctx, "ListSubmissions", submissionSelect+" ORDER BY f.created_at DESC, f.id ASC")
}

// ListSubmissionsWithAnswers loads submissions, oldest first, with their
// answers attached. An empty submitterID selects every submission.
func (s *SQLiteStore) ListSubmissionsWithAnswers(ctx context.Context, submitterID string) ([]*models.Submission, error) {
	const filter = " WHERE (? = '' OR (f.submitter_type = 'user' AND f.submitter_id = ?))"
	subs, err := s.querySubmissions(ctx, "ListSubmissionsWithAnswers",
		submissionSelect+filter+" ORDER BY f.created_at ASC, f.id ASC", submitterID, submitterID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Submission, len(subs))
	for _, sub := range subs {
		byID[sub.ID] = sub
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.feedback_id, a.question_id, a.answer_text, a.sentiment_score, a.sentiment_label, a.position
		 FROM feedback_answers a JOIN feedback f ON f.id = a.feedback_id`+filter+`
		 ORDER BY a.feedback_id, a.position`, submitterID, submitterID)
	if err != nil {
		return nil, s.logErr(ctx, "ListSubmissionsWithAnswers answers", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			a     models.Answer
			label string
		)
		if err := rows.Scan(&a.ID, &a.SubmissionID, &a.QuestionID, &a.RawValue, &a.Score, &label, &a.Position); err != nil {
			return nil, s.logErr(ctx, "ListSubmissionsWithAnswers scan", err)
		}
		a.Label = models.Label(label)
		// answers written after the submission query ran have no parent here
		if sub, ok := byID[a.SubmissionID]; ok {
			sub.Answers = append(sub.Answers, a)
		}
	}
	return subs, s.logErr(ctx, "ListSubmissionsWithAnswers rows", rows.Err())
}

// GetSubmission returns one submission with its answers, or nil when absent.
func (s *SQLiteStore) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx, submissionSelect+" WHERE f.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.logErr(ctx, "GetSubmission", err)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, feedback_id, question_id, answer_text, sentiment_score, sentiment_label, position
		 FROM feedback_answers WHERE feedback_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, s.logErr(ctx, "GetSubmission answers", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			a     models.Answer
			label string
		)
		if err := rows.Scan(&a.ID, &a.SubmissionID, &a.QuestionID, &a.RawValue, &a.Score, &label, &a.Position); err != nil {
			return nil, s.logErr(ctx, "GetSubmission scan", err)
		}
		a.Label = models.Label(label)
		sub.Answers = append(sub.Answers, a)
	}
	return sub, s.logErr(ctx, "GetSubmission rows", rows.Err())
}

// DeleteSubmission removes a submission; its answers go with it by cascade.
func (s *SQLiteStore) DeleteSubmission(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM feedback WHERE id = ?", id)
	if err != nil {
		return false, s.logErr(ctx, "DeleteSubmission", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.logErr(ctx, "DeleteSubmission rows", err)
	}
	return n > 0, nil
}

// --- Users ---

func (s *SQLiteStore) AddUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, username, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		u.ID, u.Username, u.Email, u.PassHash, string(u.Role), createdAt.UTC())
	return s.logErr(ctx, "AddUser", err)
}

func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var (
		u    models.User
		role string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, role, created_at FROM users WHERE email = ?", email).
		Scan(&u.ID, &u.Username, &u.Email, &u.PassHash, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.logErr(ctx, "FindUserByEmail", err)
	}
	u.Role = models.Role(role)
	return &u, nil
}
