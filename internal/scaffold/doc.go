// Package scaffold materializes a project template on disk. Regular files are
// copied with their permissions; files ending in .tmpl are rendered with
// text/template against ProjectData and written without the suffix.
package scaffold
