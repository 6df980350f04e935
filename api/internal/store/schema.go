package store

// Schema — DDL для таблиц воркера. Применяется миграцией или вручную.
const Schema = `
create table if not exists work_runs (
  run_id     text primary key,
  created_at timestamptz not null default now(),
  total      integer not null,
  finished   integer not null,
  rate       double precision not null,
  policy     text not null,
  action     text not null
);

create table if not exists work_results (
  id          bigserial primary key,
  created_at  timestamptz not null default now(),
  run_id      text not null,
  idx         integer not null,
  question    text not null,
  qtype       text not null default '',
  finish      boolean,
  error       text not null default '',
  result_json jsonb not null,
  unique (run_id, idx)
);
create index if not exists work_results_created_at on work_results (created_at);
`
