package i18n

import "strings"

var translations = map[string]string{
	"invalid request":                      "Solicitud no válida",
	"failed to generate token":             "Error al generar el token",
	"failed to get user":                   "Error al obtener el usuario",
	"missing authorization token":          "Falta el token de autenticación",
	"invalid token":                        "Token no válido",
	"failed to validate user":              "Error al validar el usuario",
	"user not found":                       "Usuario no encontrado",
	"unauthorized":                         "Acceso no autorizado",
	"channel not found":                    "Canal no encontrado",
	"invalid channel id":                   "Identificador de canal no válido",
	"failed to fetch channels":             "Error al obtener los canales",
	"failed to fetch messages":             "Error al obtener los mensajes",
	"failed to scan message":               "Error al procesar el mensaje",
	"invalid message id":                   "Identificador de mensaje no válido",
	"message not found":                    "Mensaje no encontrado",
	"can only edit own messages":           "Solo puedes editar tus propios mensajes",
	"can only delete own messages":         "Solo puedes eliminar tus propios mensajes",
	"failed to update message":             "Error al actualizar el mensaje",
	"failed to delete message":             "Error al eliminar el mensaje",
	"channel and content or file required": "Canal y contenido/archivo requeridos",
	"message content required":             "El contenido del mensaje es obligatorio",
	"file too large":                       "El archivo no puede superar los 20MB",
	"file type not allowed":                "Tipo de archivo no permitido",
	"invalid file data":                    "Datos de archivo no válidos",
	"failed to create message":             "Error al crear el mensaje",
	"failed to save file":                  "Error al guardar el archivo",
	"failed to mark as read":               "Error al marcar como leído",
	"invalid subscription":                 "Suscripción no válida",
	"failed to save subscription":          "Error al guardar la suscripción",
	"failed to remove subscription":        "Error al eliminar la suscripción",
	"websocket upgrade failed":             "Error al establecer la conexión WebSocket",
	"rate limiter error":                   "Error en el limitador de peticiones",
	"rate limit exceeded":                  "Se ha superado el límite de peticiones",
	"internal server error":                "Error interno del servidor",
	"not found":                            "No encontrado",
	"username must be between 3 and 32 characters": "El nombre de usuario debe tener entre 3 y 32 caracteres",
	"username can only contain letters, numbers, and underscores": "El nombre de usuario solo puede contener letras, números y guiones bajos",
	"password must be at least 6 characters":                      "La contraseña debe tener al menos 6 caracteres",
	"username already exists":                                     "Este nombre de usuario ya está registrado",
	"invalid username or password":                                "Nombre de usuario o contraseña incorrectos",
}

var prefixTranslations = map[string]string{
	"failed to hash password:":   "Error al procesar la contraseña",
	"failed to register user:":   "Error al registrar el usuario",
	"failed to get user id:":     "Error al obtener el identificador de usuario",
	"failed to query user:":      "Error al consultar el usuario",
	"failed to generate token:":  "Error al generar el token",
	"failed to sign token:":      "Error al firmar el token",
	"failed to parse token:":     "Token no válido",
	"unexpected signing method:": "Método de firma del token no válido",
}

func Translate(message string) string {
	if translated, ok := translations[message]; ok {
		return translated
	}
	for prefix, translated := range prefixTranslations {
		if strings.HasPrefix(message, prefix) {
			return translated
		}
	}
	return message
}
