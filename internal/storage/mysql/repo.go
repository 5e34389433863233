package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"food_discovery/internal/domain"
)

func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) UpsertPlace(ctx context.Context, p domain.Place) error {
	hours, _ := json.Marshal(p.Hours)
	_, err := r.db.ExecContext(ctx, upsertPlaceSQL,
		p.ID,
		p.Name,
		p.City,
		p.Region,
		p.PostalCode,
		valF64(p.Lat),
		valF64(p.Lon),
		string(p.Type),
		p.Specialization,
		p.AcceptsCash,
		p.AcceptsCard,
		p.AcceptsMobilePay,
		p.DeliveryAvailable,
		string(hours),
		p.Rating,
		p.ReviewCount,
		p.ViewCount,
		p.OwnerVerified,
		valInt64(p.OwnerUserID),
		valTime(p.DeletedAt),
	)
	return err
}

func (r *Repo) UpsertProduct(ctx context.Context, p domain.Product) error {
	names, _ := json.Marshal(p.NamesByLocale)
	alts, _ := json.Marshal(p.AltNames)
	keys, _ := json.Marshal(p.SearchKeywords)
	_, err := r.db.ExecContext(ctx, upsertProductSQL,
		p.ID,
		p.Name,
		string(names),
		string(alts),
		p.Category,
		p.CuisineRegion,
		string(keys),
		valTime(p.DeletedAt),
	)
	return err
}

func (r *Repo) UpsertInventoryLink(ctx context.Context, l domain.InventoryLink) error {
	_, err := r.db.ExecContext(ctx, upsertInventoryLinkSQL,
		l.ID,
		l.PlaceID,
		l.ProductID,
		l.CommonlyAvailable,
		valF64(l.TypicalPrice),
		l.Currency,
		l.Note,
		l.LastVerifiedAt,
	)
	return err
}

func (r *Repo) UpsertReview(ctx context.Context, rv domain.Review) error {
	var respText any
	var respAt any
	if rv.OwnerResponse != nil {
		respText = rv.OwnerResponse.Text
		respAt = rv.OwnerResponse.RespondedAt
	}
	_, err := r.db.ExecContext(ctx, upsertReviewSQL,
		rv.ID,
		rv.UserID,
		rv.PlaceID,
		valInt64(rv.ProductID),
		rv.Rating,
		rv.Text,
		string(rv.Kind),
		string(rv.State),
		rv.HelpfulCount,
		rv.UnhelpfulCount,
		respText,
		respAt,
		valTime(rv.DeletedAt),
	)
	return err
}

func (r *Repo) UpsertQuestion(ctx context.Context, q domain.Question) error {
	_, err := r.db.ExecContext(ctx, upsertQuestionSQL,
		q.ID,
		q.UserID,
		valInt64(q.PlaceID),
		valInt64(q.ProductID),
		q.Text,
		q.Category,
		q.AnswerCount,
		q.Answered,
		q.HelpfulCount,
	)
	return err
}

func (r *Repo) UpsertAnswer(ctx context.Context, a domain.Answer) error {
	_, err := r.db.ExecContext(ctx, upsertAnswerSQL,
		a.ID,
		a.QuestionID,
		a.UserID,
		a.Text,
		a.Authoritative,
		a.HelpfulCount,
		a.UnhelpfulCount,
	)
	return err
}

func (r *Repo) UpsertVote(ctx context.Context, v domain.Vote) error {
	castAt := v.CastAt
	if castAt.IsZero() {
		castAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, upsertVoteSQL,
		v.UserID,
		string(v.TargetKind),
		v.TargetID,
		int(v.Direction),
		castAt,
	)
	return err
}

func (r *Repo) UpsertFavorite(ctx context.Context, f domain.Favorite) error {
	_, err := r.db.ExecContext(ctx, upsertFavoriteSQL,
		f.ID,
		f.UserID,
		valInt64(f.PlaceID),
		valInt64(f.ProductID),
	)
	return err
}

func (r *Repo) TombstonePlace(ctx context.Context, placeID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, tombstonePlaceSQL, at, placeID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Kind: "place", ID: placeID}
	}
	return nil
}

func (r *Repo) TombstoneProduct(ctx context.Context, productID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, tombstoneProductSQL, at, productID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Kind: "product", ID: productID}
	}
	return nil
}

func (r *Repo) SavePlaceAggregates(ctx context.Context, placeID int64, rating float64, reviewCount int, viewCount int64) error {
	_, err := r.db.ExecContext(ctx, savePlaceAggregatesSQL, rating, reviewCount, viewCount, placeID)
	return err
}

func (r *Repo) SaveQuestionAggregates(ctx context.Context, questionID int64, answerCount int, answered bool) error {
	_, err := r.db.ExecContext(ctx, saveQuestionAggregatesSQL, answerCount, answered, questionID)
	return err
}

// ---- warm-load reads ----

func (r *Repo) ListPlaces(ctx context.Context) ([]domain.Place, error) {
	rows, err := r.db.QueryContext(ctx, listPlacesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Place
	for rows.Next() {
		var p domain.Place
		var lat, lon sql.NullFloat64
		var hoursJSON []byte
		var ownerUserID sql.NullInt64
		var deletedAt sql.NullTime
		if err := rows.Scan(
			&p.ID, &p.Name, &p.City, &p.Region, &p.PostalCode,
			&lat, &lon, &p.Type, &p.Specialization,
			&p.AcceptsCash, &p.AcceptsCard, &p.AcceptsMobilePay, &p.DeliveryAvailable,
			&hoursJSON, &p.Rating, &p.ReviewCount, &p.ViewCount,
			&p.OwnerVerified, &ownerUserID,
			&p.CreatedAt, &p.UpdatedAt, &deletedAt,
		); err != nil {
			return nil, err
		}
		if lat.Valid {
			v := lat.Float64
			p.Lat = &v
		}
		if lon.Valid {
			v := lon.Float64
			p.Lon = &v
		}
		if ownerUserID.Valid {
			v := ownerUserID.Int64
			p.OwnerUserID = &v
		}
		if deletedAt.Valid {
			v := deletedAt.Time
			p.DeletedAt = &v
		}
		_ = json.Unmarshal(hoursJSON, &p.Hours)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, listProductsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		var names, alts, keys []byte
		var deletedAt sql.NullTime
		if err := rows.Scan(
			&p.ID, &p.Name, &names, &alts, &p.Category, &p.CuisineRegion, &keys,
			&p.CreatedAt, &p.UpdatedAt, &deletedAt,
		); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(names, &p.NamesByLocale)
		_ = json.Unmarshal(alts, &p.AltNames)
		_ = json.Unmarshal(keys, &p.SearchKeywords)
		if deletedAt.Valid {
			v := deletedAt.Time
			p.DeletedAt = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) ListInventoryLinks(ctx context.Context) ([]domain.InventoryLink, error) {
	rows, err := r.db.QueryContext(ctx, listInventoryLinksSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.InventoryLink
	for rows.Next() {
		var l domain.InventoryLink
		var price sql.NullFloat64
		if err := rows.Scan(
			&l.ID, &l.PlaceID, &l.ProductID, &l.CommonlyAvailable,
			&price, &l.Currency, &l.Note, &l.LastVerifiedAt,
			&l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if price.Valid {
			v := price.Float64
			l.TypicalPrice = &v
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repo) ListReviews(ctx context.Context) ([]domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, listReviewsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		var rv domain.Review
		var productID sql.NullInt64
		var respText sql.NullString
		var respAt sql.NullTime
		var deletedAt sql.NullTime
		if err := rows.Scan(
			&rv.ID, &rv.UserID, &rv.PlaceID, &productID,
			&rv.Rating, &rv.Text, &rv.Kind, &rv.State,
			&rv.HelpfulCount, &rv.UnhelpfulCount,
			&respText, &respAt,
			&rv.CreatedAt, &rv.UpdatedAt, &deletedAt,
		); err != nil {
			return nil, err
		}
		if productID.Valid {
			v := productID.Int64
			rv.ProductID = &v
		}
		if respText.Valid {
			rv.OwnerResponse = &domain.OwnerResponse{Text: respText.String}
			if respAt.Valid {
				rv.OwnerResponse.RespondedAt = respAt.Time
			}
		}
		if deletedAt.Valid {
			v := deletedAt.Time
			rv.DeletedAt = &v
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *Repo) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := r.db.QueryContext(ctx, listQuestionsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var q domain.Question
		var placeID, productID sql.NullInt64
		if err := rows.Scan(
			&q.ID, &q.UserID, &placeID, &productID,
			&q.Text, &q.Category, &q.AnswerCount, &q.Answered, &q.HelpfulCount,
			&q.CreatedAt, &q.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if placeID.Valid {
			v := placeID.Int64
			q.PlaceID = &v
		}
		if productID.Valid {
			v := productID.Int64
			q.ProductID = &v
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *Repo) ListAnswers(ctx context.Context) ([]domain.Answer, error) {
	rows, err := r.db.QueryContext(ctx, listAnswersSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Answer
	for rows.Next() {
		var a domain.Answer
		if err := rows.Scan(
			&a.ID, &a.QuestionID, &a.UserID, &a.Text, &a.Authoritative,
			&a.HelpfulCount, &a.UnhelpfulCount, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repo) ListVotes(ctx context.Context) ([]domain.Vote, error) {
	rows, err := r.db.QueryContext(ctx, listVotesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Vote
	for rows.Next() {
		var v domain.Vote
		var direction int
		if err := rows.Scan(&v.UserID, &v.TargetKind, &v.TargetID, &direction, &v.CastAt); err != nil {
			return nil, err
		}
		v.Direction = domain.VoteDirection(direction)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *Repo) ListFavorites(ctx context.Context) ([]domain.Favorite, error) {
	rows, err := r.db.QueryContext(ctx, listFavoritesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Favorite
	for rows.Next() {
		var f domain.Favorite
		var placeID, productID sql.NullInt64
		if err := rows.Scan(&f.ID, &f.UserID, &placeID, &productID, &f.CreatedAt); err != nil {
			return nil, err
		}
		if placeID.Valid {
			v := placeID.Int64
			f.PlaceID = &v
		}
		if productID.Valid {
			v := productID.Int64
			f.ProductID = &v
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
