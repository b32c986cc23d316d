// Package mediahttp реализует media-узел — HTTP-endpoint, хранящий файлы на локальном диске
// и отдающий их чанками авторизованным сессиям. Основные эндпоинты:
//   - POST /auth/key — выдаёт новый (неавторизованный) ключ сессии.
//   - POST /auth/export — экспортирует авторизацию для другого узла кластера.
//   - POST /auth/import — авторизует ключ по экспортированному токену.
//   - GET /files/{mediaID}?offset=&limit= — отдаёт кусок файла; пустое тело означает конец файла.
//   - PUT /files/{mediaID} — принимает файл, проверяет размер/хеш и сохраняет вместе с meta.json.
//   - HEAD /files/{mediaID} — возвращает размер и SHA-256 через служебные заголовки.
//   - POST /admin/gc — вручную удаляет просроченные сессии.
//   - GET /health — отдаёт агрегированные данные по каталогу для health-check'ов.
package mediahttp
