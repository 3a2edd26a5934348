package deploy

// Default returns the canonical two-service deployment for the rental
// service: the API container built from the repository root and a Postgres
// container seeded from database_scripts. Credentials are ${VAR} references
// resolved from the operator's environment at deploy time.
func Default() *Descriptor {
	return &Descriptor{
		Services: map[string]Service{
			"app": {
				Build:         ".",
				ContainerName: "rental-app",
				Restart:       "always",
				Command:       "/usr/local/bin/rental-server",
				Ports:         []string{"8000:8000"},
				Environment: []string{
					"SERVER_PORT=8000",
					"DB_HOST=db",
					"DB_PORT=5432",
					"DB_USER=${POSTGRES_USER:-rental}",
					"DB_PASSWORD=${POSTGRES_PASSWORD:-rental}",
					"DB_NAME=${POSTGRES_DB:-rentaldb}",
					"JWT_SECRET=${JWT_SECRET}",
				},
				Volumes:   []string{".:/app"},
				DependsOn: []string{"db"},
			},
			"db": {
				Image:         "postgres:16-alpine",
				ContainerName: "rental-db",
				Restart:       "always",
				Ports:         []string{"5432:5432"},
				Environment: []string{
					"POSTGRES_DB=${POSTGRES_DB:-rentaldb}",
					"POSTGRES_USER=${POSTGRES_USER:-rental}",
					"POSTGRES_PASSWORD=${POSTGRES_PASSWORD:-rental}",
				},
				Volumes: []string{
					"./postgres-data:/var/lib/postgresql/data",
					"./database_scripts:/docker-entrypoint-initdb.d",
				},
			},
		},
	}
}
