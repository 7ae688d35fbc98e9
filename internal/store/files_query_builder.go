package store

import (
	"strings"

	"fstore/internal/models"
)

var sortColumns = map[models.SortField]string{
	models.SortByFilename:    "files.filename",
	models.SortByUploadedAt:  "files.uploaded_at",
	models.SortBySize:        "files.size_bytes",
	models.SortByContentType: "COALESCE(files.detected_type, files.content_type, '')",
	models.SortByVisibility:  "files.visibility",
}

type fileQueryBuilder struct {
	filter FileFilter
	page   PageRequest
	query  string
	args   []any
	where  []string
}

func buildListQuery(filter FileFilter, page PageRequest) (string, []any) {
	b := &fileQueryBuilder{filter: filter, page: page}
	b.query = "SELECT " + fileColumns + " FROM files"
	b.buildWhere()
	b.buildOrder()
	b.buildPagination()
	return b.query, b.args
}

func buildCountQuery(filter FileFilter) (string, []any) {
	b := &fileQueryBuilder{filter: filter}
	b.query = "SELECT COUNT(*) FROM files"
	b.buildWhere()
	return b.query, b.args
}

func (b *fileQueryBuilder) buildWhere() {
	if b.filter.OwnerID != "" {
		b.where = append(b.where, "files.owner_id = ?")
		b.args = append(b.args, b.filter.OwnerID)
	}
	if b.filter.Visibility != "" {
		b.where = append(b.where, "files.visibility = ?")
		b.args = append(b.args, string(b.filter.Visibility))
	}
	if tag := strings.TrimSpace(b.filter.Tag); tag != "" {
		b.where = append(b.where, "EXISTS (SELECT 1 FROM file_tags t WHERE t.file_id = files.id AND instr(t.tag_folded, ?) > 0)")
		b.args = append(b.args, foldTag(tag))
	}

	if len(b.where) == 0 {
		return
	}
	b.query += " WHERE " + strings.Join(b.where, " AND ")
}

func (b *fileQueryBuilder) buildOrder() {
	column, ok := sortColumns[b.page.Sort.Field]
	if !ok {
		column = sortColumns[models.DefaultSortField]
	}
	direction := "ASC"
	if b.page.Sort.Direction == models.SortDesc {
		direction = "DESC"
	}
	b.query += " ORDER BY " + column + " " + direction + ", files.id " + direction
}

func (b *fileQueryBuilder) buildPagination() {
	if b.page.Size <= 0 {
		return
	}
	b.query += " LIMIT ? OFFSET ?"
	b.args = append(b.args, b.page.Size, b.page.Page*b.page.Size)
}
