package mysql

const upsertPlaceSQL = `
INSERT INTO places
  (id, name, city, region, postal_code, lat, lon, type, specialization,
   accepts_cash, accepts_card, accepts_mobile_pay, delivery_available,
   hours, rating, review_count, view_count, owner_verified, owner_user_id, deleted_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  name               = VALUES(name),
  city               = VALUES(city),
  region             = VALUES(region),
  postal_code        = VALUES(postal_code),
  lat                = VALUES(lat),
  lon                = VALUES(lon),
  type               = VALUES(type),
  specialization     = VALUES(specialization),
  accepts_cash       = VALUES(accepts_cash),
  accepts_card       = VALUES(accepts_card),
  accepts_mobile_pay = VALUES(accepts_mobile_pay),
  delivery_available = VALUES(delivery_available),
  hours              = VALUES(hours),
  rating             = VALUES(rating),
  review_count       = VALUES(review_count),
  view_count         = VALUES(view_count),
  owner_verified     = VALUES(owner_verified),
  owner_user_id      = VALUES(owner_user_id),
  deleted_at         = VALUES(deleted_at),
  updated_at         = CURRENT_TIMESTAMP
`

const upsertProductSQL = `
INSERT INTO products
  (id, name, names_i18n, alt_names, category, cuisine_region, search_keywords, deleted_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  name            = VALUES(name),
  names_i18n      = VALUES(names_i18n),
  alt_names       = VALUES(alt_names),
  category        = VALUES(category),
  cuisine_region  = VALUES(cuisine_region),
  search_keywords = VALUES(search_keywords),
  deleted_at      = VALUES(deleted_at),
  updated_at      = CURRENT_TIMESTAMP
`

const upsertInventoryLinkSQL = `
INSERT INTO place_products
  (id, place_id, product_id, commonly_available, typical_price, currency, note, last_verified_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  commonly_available = VALUES(commonly_available),
  typical_price      = VALUES(typical_price),
  currency           = VALUES(currency),
  note               = VALUES(note),
  last_verified_at   = VALUES(last_verified_at),
  updated_at         = CURRENT_TIMESTAMP
`

// Note: `text` is reserved; keep it quoted everywhere.
const upsertReviewSQL = "INSERT INTO reviews\n" +
	"  (id, user_id, place_id, product_id, rating, `text`, kind, state,\n" +
	"   helpful_count, unhelpful_count, owner_response, owner_responded_at, deleted_at)\n" +
	"VALUES\n" +
	"  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)\n" +
	"ON DUPLICATE KEY UPDATE\n" +
	"  rating             = VALUES(rating),\n" +
	"  `text`             = VALUES(`text`),\n" +
	"  kind               = VALUES(kind),\n" +
	"  state              = VALUES(state),\n" +
	"  helpful_count      = VALUES(helpful_count),\n" +
	"  unhelpful_count    = VALUES(unhelpful_count),\n" +
	"  owner_response     = VALUES(owner_response),\n" +
	"  owner_responded_at = VALUES(owner_responded_at),\n" +
	"  deleted_at         = VALUES(deleted_at),\n" +
	"  updated_at         = CURRENT_TIMESTAMP\n"

const upsertQuestionSQL = "INSERT INTO questions\n" +
	"  (id, user_id, place_id, product_id, `text`, category, answer_count, answered, helpful_count)\n" +
	"VALUES\n" +
	"  (?, ?, ?, ?, ?, ?, ?, ?, ?)\n" +
	"ON DUPLICATE KEY UPDATE\n" +
	"  `text`        = VALUES(`text`),\n" +
	"  category      = VALUES(category),\n" +
	"  answer_count  = VALUES(answer_count),\n" +
	"  answered      = VALUES(answered),\n" +
	"  helpful_count = VALUES(helpful_count),\n" +
	"  updated_at    = CURRENT_TIMESTAMP\n"

const upsertAnswerSQL = "INSERT INTO answers\n" +
	"  (id, question_id, user_id, `text`, authoritative, helpful_count, unhelpful_count)\n" +
	"VALUES\n" +
	"  (?, ?, ?, ?, ?, ?, ?)\n" +
	"ON DUPLICATE KEY UPDATE\n" +
	"  `text`          = VALUES(`text`),\n" +
	"  authoritative   = VALUES(authoritative),\n" +
	"  helpful_count   = VALUES(helpful_count),\n" +
	"  unhelpful_count = VALUES(unhelpful_count)\n"

// One vote per (user, target); a re-vote flips direction in place.
const upsertVoteSQL = `
INSERT INTO votes (user_id, target_kind, target_id, direction, cast_at)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  direction = VALUES(direction),
  cast_at   = VALUES(cast_at)
`

const upsertFavoriteSQL = `
INSERT INTO favorites (id, user_id, place_id, product_id)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  user_id    = VALUES(user_id),
  place_id   = VALUES(place_id),
  product_id = VALUES(product_id)
`

const tombstonePlaceSQL = `
UPDATE places SET deleted_at = COALESCE(deleted_at, ?), updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`

const tombstoneProductSQL = `
UPDATE products SET deleted_at = COALESCE(deleted_at, ?), updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`

// Aggregates are recomputed in memory and written through; the row is
// never the source of truth for them while the process is up.
const savePlaceAggregatesSQL = `
UPDATE places SET rating = ?, review_count = ?, view_count = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`

const saveQuestionAggregatesSQL = `
UPDATE questions SET answer_count = ?, answered = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`

// -----------------------------------------------------------------------------
// READ QUERIES (startup warm load: full tables, tombstones included)
// -----------------------------------------------------------------------------

const listPlacesSQL = `
SELECT id, name, city, region, postal_code, lat, lon, type, specialization,
       accepts_cash, accepts_card, accepts_mobile_pay, delivery_available,
       hours, rating, review_count, view_count, owner_verified, owner_user_id,
       created_at, updated_at, deleted_at
FROM places
ORDER BY id
`

const listProductsSQL = `
SELECT id, name, names_i18n, alt_names, category, cuisine_region, search_keywords,
       created_at, updated_at, deleted_at
FROM products
ORDER BY id
`

const listInventoryLinksSQL = `
SELECT id, place_id, product_id, commonly_available, typical_price, currency, note,
       last_verified_at, created_at, updated_at
FROM place_products
ORDER BY id
`

const listReviewsSQL = "SELECT id, user_id, place_id, product_id, rating, `text`, kind, state,\n" +
	"       helpful_count, unhelpful_count, owner_response, owner_responded_at,\n" +
	"       created_at, updated_at, deleted_at\n" +
	"FROM reviews ORDER BY id\n"

const listQuestionsSQL = "SELECT id, user_id, place_id, product_id, `text`, category,\n" +
	"       answer_count, answered, helpful_count, created_at, updated_at\n" +
	"FROM questions ORDER BY id\n"

const listAnswersSQL = "SELECT id, question_id, user_id, `text`, authoritative,\n" +
	"       helpful_count, unhelpful_count, created_at\n" +
	"FROM answers ORDER BY id\n"

const listVotesSQL = `
SELECT user_id, target_kind, target_id, direction, cast_at
FROM votes
ORDER BY user_id, target_kind, target_id
`

const listFavoritesSQL = `
SELECT id, user_id, place_id, product_id, created_at
FROM favorites
ORDER BY id
`
